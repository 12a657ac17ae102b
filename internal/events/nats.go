package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is prepended to every event type.
const DefaultSubjectPrefix = "scriptbuilder"

// ErrNotConnected is returned by [NATSPublisher.Check] while the connection is down.
var ErrNotConnected = errors.New("events: nats not connected")

// NATSPublisher publishes JSON encoded events to NATS core subjects of the
// form "{prefix}.{type}".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

var _ Publisher = (*NATSPublisher)(nil)

// NATSOption configures a [NATSPublisher].
type NATSOption func(*natsConfig)

type natsConfig struct {
	token  string
	prefix string
	logger *slog.Logger
}

// WithToken authenticates with a NATS token.
func WithToken(token string) NATSOption {
	return func(c *natsConfig) { c.token = token }
}

// WithSubjectPrefix overrides [DefaultSubjectPrefix].
func WithSubjectPrefix(prefix string) NATSOption {
	return func(c *natsConfig) { c.prefix = prefix }
}

// WithLogger sets the logger for connection state changes.
func WithLogger(l *slog.Logger) NATSOption {
	return func(c *natsConfig) { c.logger = l }
}

// NewNATS connects to the NATS server at url. The connection retries in the
// background, so a server that is not up yet does not fail startup.
func NewNATS(url string, opts ...NATSOption) (*NATSPublisher, error) {
	cfg := natsConfig{prefix: DefaultSubjectPrefix, logger: slog.Default()}
	for _, o := range opts {
		o(&cfg)
	}
	logger := cfg.logger

	natsOpts := []nats.Option{
		nats.Name("scriptbuilder"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if cfg.token != "" {
		natsOpts = append(natsOpts, nats.Token(cfg.token))
	}

	nc, err := nats.Connect(url, natsOpts...)
	if err != nil {
		return nil, fmt.Errorf("events: nats connect: %w", err)
	}
	return &NATSPublisher{conn: nc, prefix: cfg.prefix, logger: logger}, nil
}

// Publish implements [Publisher].
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", e.Type, err)
	}
	if err := p.conn.Publish(Subject(p.prefix, e.Type), payload); err != nil {
		return fmt.Errorf("events: publish %s: %w", e.Type, err)
	}
	return nil
}

// Check reports whether the connection is currently established. It matches
// the health checker signature.
func (p *NATSPublisher) Check(context.Context) error {
	if !p.conn.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		p.conn.Close()
		return fmt.Errorf("events: drain: %w", err)
	}
	return nil
}

// Subject returns the NATS subject for t under prefix. Empty prefixes and
// stray dots are tolerated.
func Subject(prefix string, t Type) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}
