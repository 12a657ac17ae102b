// Package app wires the ScriptBuilder subsystems into a running server.
//
// New builds every component from the config, Run serves HTTP until the
// context ends, and Shutdown tears everything down once. Test doubles are
// injected with the With* options; anything not injected is created from
// the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/agent"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/agent/orchestrator"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/api"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/config"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/events"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/health"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/hotctx"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/inheritance"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/lexicon"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/memory"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/observe"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/resilience"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/session"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/transcript"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/stt"
)

// ErrNoLLM is returned by New when no LLM provider is supplied.
var ErrNoLLM = errors.New("app: an LLM provider is required")

// Providers holds the provider instances built by main via the registry.
// STT may be nil, which disables /transcribe.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// App owns every subsystem and their lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	roster      *agent.Roster
	graph       *inheritance.Graph
	sessions    *session.Store
	memory      *memory.Store
	composer    *hotctx.Composer
	orch        *orchestrator.Orchestrator
	synonyms    *lexicon.Synonyms
	transcripts *transcript.Service
	publisher   events.Publisher
	metrics     *observe.Metrics
	metricsH    http.Handler
	checkers    []health.Checker
	server      *api.Server

	now        func() time.Time
	listener   net.Listener
	httpServer *http.Server

	// closers run in order during Shutdown.
	closers  []closer
	stopOnce sync.Once
}

// Option configures New. Use these to inject test doubles.
type Option func(*App)

// WithPublisher injects an event publisher instead of connecting to NATS.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) { a.publisher = p }
}

// WithMetrics injects the metric instruments.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler replaces the default promhttp handler.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsH = h }
}

// WithClock sets the time source for stored turns.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// WithListener makes Run serve on ln instead of listening on
// server.listen_addr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// WithCloser registers fn to run during Shutdown after the built-in closers,
// for example observe.Telemetry.Shutdown.
func WithCloser(name string, fn func(context.Context) error) Option {
	return func(a *App) { a.closers = append(a.closers, closer{name: name, fn: fn}) }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New wires every subsystem. cfg must already have defaults applied.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, ErrNoLLM
	}
	a := &App{cfg: cfg, providers: providers}
	for _, o := range opts {
		o(a)
	}
	// Closers registered through options run last.
	extra := a.closers
	a.closers = nil

	// ── 1. Roster and inheritance graph ──────────────────────────────────
	roster, err := agent.NewRoster(cfg.ExpertList())
	if err != nil {
		return nil, fmt.Errorf("app: build roster: %w", err)
	}
	a.roster = roster
	a.graph = inheritance.New(roster.InheritanceTable())

	// ── 2. Stores ────────────────────────────────────────────────────────
	var storeOpts []session.StoreOption
	if a.now != nil {
		storeOpts = append(storeOpts, session.WithClock(a.now))
	}
	a.sessions = session.NewStore(storeOpts...)
	a.memory = memory.NewStore(a.graph,
		memory.WithCapacity(cfg.Memory.Capacity),
		memory.WithMinLength(cfg.Memory.MinLength),
	)

	// ── 3. Composer ──────────────────────────────────────────────────────
	a.composer = hotctx.NewComposer(a.sessions, a.graph, a.memory)

	// ── 4. Events and metrics ────────────────────────────────────────────
	if err := a.initEvents(ctx); err != nil {
		return nil, fmt.Errorf("app: init events: %w", err)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 5. Orchestrator ──────────────────────────────────────────────────
	conv := cfg.Conversation
	a.orch = orchestrator.New(a.roster, a.composer, a.sessions, a.memory, providers.LLM,
		orchestrator.WithMetrics(a.metrics),
		orchestrator.WithPublisher(a.publisher),
		orchestrator.WithTurnTimeout(conv.TurnTimeout),
		orchestrator.WithMaxConcurrent(conv.MaxConcurrentTurns),
		orchestrator.WithHistoryTokenBudget(conv.HistoryTokenBudget),
		orchestrator.WithTemperature(conv.Temperature),
		orchestrator.WithMaxTokens(conv.MaxTokens),
		orchestrator.WithProviderName(providerName(providers.LLM, cfg.Providers.LLM.Name)),
	)

	// ── 6. Lexicon and transcription ─────────────────────────────────────
	a.synonyms = lexicon.NewSynonyms(providers.LLM)
	if providers.STT != nil {
		a.transcripts = transcript.NewService(providers.STT,
			transcript.WithMetrics(a.metrics),
			transcript.WithPublisher(a.publisher),
			transcript.WithProviderName(providerName(providers.STT, cfg.Providers.STT.Name)),
		)
	}

	// ── 7. HTTP API ──────────────────────────────────────────────────────
	a.checkers = append(a.checkers, health.Checker{Name: "llm", Check: llmCheck(providers.LLM)})
	if a.metricsH == nil {
		a.metricsH = promhttp.Handler()
	}
	apiOpts := []api.Option{
		api.WithMetrics(a.metrics),
		api.WithSynonyms(a.synonyms),
		api.WithHealth(health.New(a.checkers)),
		api.WithMetricsHandler(cfg.Telemetry.MetricsPath, a.metricsH),
	}
	if a.transcripts != nil {
		apiOpts = append(apiOpts, api.WithTranscriber(a.transcripts))
	}
	a.server = api.NewServer(a.orch, a.roster, a.sessions, apiOpts...)
	a.httpServer = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	a.closers = append(a.closers, extra...)

	slog.Info("app initialised",
		"experts", len(a.roster.IDs()),
		"llm", providerName(providers.LLM, cfg.Providers.LLM.Name),
		"transcription", a.transcripts != nil,
		"events", cfg.Events.NATSURL != "",
	)
	return a, nil
}

// initEvents connects the NATS publisher unless one was injected or the URL
// is empty.
func (a *App) initEvents(_ context.Context) error {
	if a.publisher != nil {
		return nil
	}
	ev := a.cfg.Events
	if ev.NATSURL == "" {
		a.publisher = events.Nop{}
		return nil
	}
	pub, err := events.NewNATS(ev.NATSURL,
		events.WithToken(ev.Token),
		events.WithSubjectPrefix(ev.SubjectPrefix),
		events.WithLogger(slog.Default()),
	)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.checkers = append(a.checkers, health.Checker{Name: "events", Check: pub.Check})
	a.closers = append(a.closers, closer{name: "events", fn: func(context.Context) error { return pub.Close() }})
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler, for tests and embedding.
func (a *App) Handler() http.Handler { return a.server.Handler() }

// Roster returns the expert roster.
func (a *App) Roster() *agent.Roster { return a.roster }

// Sessions returns the session store.
func (a *App) Sessions() *session.Store { return a.sessions }

// Memory returns the long-term memory store.
func (a *App) Memory() *memory.Store { return a.memory }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP until ctx is cancelled or the server fails. When ctx ends
// the server is drained within server.shutdown_timeout.
func (a *App) Run(ctx context.Context) error {
	ln := a.listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", a.httpServer.Addr)
		if err != nil {
			return fmt.Errorf("app: listen %s: %w", a.httpServer.Addr, err)
		}
	}
	slog.Info("http server listening", "addr", ln.Addr().String())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(sctx); err != nil {
			return fmt.Errorf("app: drain http: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and runs the closers in order. Only the
// first call does anything. If ctx expires, remaining closers are skipped
// and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if err := a.httpServer.Shutdown(ctx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		for i, c := range a.closers {
			if err := ctx.Err(); err != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = err
				return
			}
			if err := c.fn(ctx); err != nil {
				slog.Warn("closer error", "closer", c.name, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// providerName prefers the provider's own name, which for a fallback chain
// lists every backend.
func providerName(p any, configured string) string {
	if n, ok := p.(interface{ Name() string }); ok && n.Name() != "" {
		return n.Name()
	}
	if configured != "" {
		return configured
	}
	return "unknown"
}

// llmCheck fails readiness when every breaker guarding the LLM is open.
func llmCheck(p llm.Provider) func(context.Context) error {
	return func(context.Context) error {
		fb, ok := p.(interface {
			States() map[string]resilience.State
		})
		if !ok {
			return nil
		}
		states := fb.States()
		for _, s := range states {
			if s != resilience.StateOpen {
				return nil
			}
		}
		if len(states) == 0 {
			return nil
		}
		return fmt.Errorf("all %d llm backends have an open circuit", len(states))
	}
}
