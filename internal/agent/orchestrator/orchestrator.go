// Package orchestrator runs chat turns for the expert panel.
//
// A turn moves through validating, composing, completing, and recording.
// Validation rejects unknown sessions and empty messages before any state is
// touched. The model call is the only suspension point; when it fails the
// session log and long-term memory are left exactly as they were. On success
// the user and assistant turns are appended together and the user text is
// offered to long-term memory.
//
// Turns on the same session are serialised, so the user turn of one call is
// always immediately followed by that call's assistant turn. Turns on
// different sessions run in parallel, bounded by a global semaphore.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/agent"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/events"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/hotctx"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/observe"
	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/session"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/provider/llm"
	"github.com/projectpartnersllc/ScriptBuilder.AI/pkg/types"
)

const (
	defaultTurnTimeout   = 30 * time.Second
	defaultMaxConcurrent = 8
	defaultProviderName  = "llm"
)

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// Roster resolves session identifiers to experts. *agent.Roster satisfies it.
type Roster interface {
	Get(id string) (agent.Expert, bool)
}

// Composer builds the history view and memory digest. *hotctx.Composer
// satisfies it.
type Composer interface {
	Compose(ctx context.Context, id string) (*hotctx.Context, error)
}

// Sessions records turns. *session.Store satisfies it.
type Sessions interface {
	Append(id string, turns ...session.Turn) error
	EditLastAssistantTurn(id, newText string) (session.Turn, error)
}

// Memory is offered every user message. *memory.Store satisfies it.
type Memory interface {
	Record(id, utterance string) bool
}

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithPublisher sets where turn and edit events go. Defaults to [events.Nop].
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

// WithTurnTimeout bounds the model call of a single turn. Default 30s.
func WithTurnTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.turnTimeout = d
		}
	}
}

// WithMaxConcurrent bounds the number of model calls in flight across all
// sessions. Default 8.
func WithMaxConcurrent(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// WithHistoryTokenBudget drops the oldest history entries until the request
// fits in n tokens. Zero disables trimming.
func WithHistoryTokenBudget(n int) Option {
	return func(o *Orchestrator) { o.tokenBudget = n }
}

// WithTemperature sets the sampling temperature sent with every request.
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithMaxTokens caps the reply length of every request.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) { o.maxTokens = n }
}

// WithProviderName labels provider metrics. Default "llm".
func WithProviderName(name string) Option {
	return func(o *Orchestrator) {
		if name != "" {
			o.providerName = name
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Orchestrator
// ─────────────────────────────────────────────────────────────────────────────

// Orchestrator runs chat turns and edits for every expert session.
//
// All exported methods are safe for concurrent use.
type Orchestrator struct {
	roster   Roster
	composer Composer
	sessions Sessions
	memory   Memory
	llm      llm.Provider

	metrics      *observe.Metrics
	publisher    events.Publisher
	turnTimeout  time.Duration
	tokenBudget  int
	temperature  float64
	maxTokens    int
	providerName string

	maxConcurrent int
	sem           *semaphore.Weighted
	locks         *sessionLocks
}

// New creates an Orchestrator.
func New(roster Roster, composer Composer, sessions Sessions, memory Memory, provider llm.Provider, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		roster:        roster,
		composer:      composer,
		sessions:      sessions,
		memory:        memory,
		llm:           provider,
		publisher:     events.Nop{},
		turnTimeout:   defaultTurnTimeout,
		maxConcurrent: defaultMaxConcurrent,
		providerName:  defaultProviderName,
		locks:         newSessionLocks(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	o.sem = semaphore.NewWeighted(int64(o.maxConcurrent))
	return o
}

// completeFunc performs the model call of a turn and returns the full reply.
type completeFunc func(ctx context.Context, req llm.CompletionRequest) (string, error)

// HandleTurn runs one chat turn for session id and returns the assistant reply.
//
// Errors are *TurnError values matching [ErrUnknownSession], [ErrEmptyMessage],
// or [ErrCompletionFailure].
func (o *Orchestrator) HandleTurn(ctx context.Context, id, userText string) (string, error) {
	return o.run(ctx, "chat", id, userText, func(ctx context.Context, req llm.CompletionRequest) (string, error) {
		resp, err := o.llm.Complete(ctx, req)
		if err != nil {
			return "", err
		}
		if resp == nil {
			return "", errEmptyReply
		}
		return resp.Content, nil
	})
}

// StreamTurn behaves like [Orchestrator.HandleTurn] but streams the reply.
// onChunk receives every non-empty text fragment in order; an error from
// onChunk aborts the turn. Nothing is recorded unless the stream completes.
func (o *Orchestrator) StreamTurn(ctx context.Context, id, userText string, onChunk func(string) error) (string, error) {
	return o.run(ctx, "stream", id, userText, func(ctx context.Context, req llm.CompletionRequest) (string, error) {
		o.metrics.ActiveStreams.Add(ctx, 1)
		defer o.metrics.ActiveStreams.Add(context.WithoutCancel(ctx), -1)

		sctx, cancel := context.WithCancel(ctx)
		ch, err := o.llm.StreamCompletion(sctx, req)
		if err != nil {
			cancel()
			return "", err
		}
		// Stop and drain on every exit path so the provider goroutine can finish.
		defer func() {
			cancel()
			for range ch {
			}
		}()

		var b strings.Builder
		for chunk := range ch {
			if chunk.FinishReason == llm.FinishReasonError {
				return "", errors.New("stream failed: " + chunk.Text)
			}
			if chunk.Text == "" {
				continue
			}
			b.WriteString(chunk.Text)
			if onChunk != nil {
				if err := onChunk(chunk.Text); err != nil {
					return "", fmt.Errorf("deliver chunk: %w", err)
				}
			}
		}
		// A cancelled stream closes early; a partial reply must not be recorded.
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return b.String(), nil
	})
}

func (o *Orchestrator) run(ctx context.Context, op, id, userText string, complete completeFunc) (string, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(observe.WithSession(ctx, id), "orchestrator."+op)
	defer span.End()

	// ── validating ───────────────────────────────────────────────────────────
	expert, ok := o.roster.Get(id)
	if !ok {
		return "", o.reject(span, &TurnError{SessionID: id, Op: op, Err: ErrUnknownSession})
	}
	if strings.TrimSpace(userText) == "" {
		return "", o.reject(span, &TurnError{SessionID: id, Op: op, Err: ErrEmptyMessage})
	}

	log := observe.Logger(ctx).With("op", op)
	fail := func(cause error) (string, error) {
		terr := &TurnError{SessionID: id, Op: op, Err: completionFailure(cause)}
		span.RecordError(terr)
		span.SetStatus(codes.Error, terr.Error())
		o.metrics.RecordTurn(ctx, id, observe.StatusError)
		log.Warn("turn failed", "error", cause)
		return "", terr
	}

	release, err := o.locks.acquire(ctx, id)
	if err != nil {
		return fail(fmt.Errorf("wait for session: %w", err))
	}
	defer release()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return fail(fmt.Errorf("wait for capacity: %w", err))
	}
	defer o.sem.Release(1)

	// ── composing ────────────────────────────────────────────────────────────
	hctx, err := o.composer.Compose(ctx, id)
	if err != nil {
		return fail(err)
	}
	system := hotctx.FormatSystemPrompt(expert.Persona, hctx.MemoryDigest)
	trimmed := o.trimHistory(ctx, hctx, system, userText)
	span.SetAttributes(
		attribute.Int("history.entries", len(hctx.History)),
		attribute.Int("history.inherited", hctx.Inherited),
		attribute.Int("history.trimmed", trimmed),
	)

	req := llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     hotctx.BuildMessages(hctx, userText),
		Temperature:  o.temperature,
		MaxTokens:    o.maxTokens,
	}

	// ── completing ───────────────────────────────────────────────────────────
	reply, err := o.complete(ctx, complete, req)
	if err != nil {
		return fail(err)
	}

	// ── recording ────────────────────────────────────────────────────────────
	if err := o.sessions.Append(id,
		session.NewTurn(session.RoleUser, userText),
		session.NewTurn(session.RoleAssistant, reply),
	); err != nil {
		return fail(err)
	}
	remembered := o.memory.Record(id, userText)
	if remembered {
		o.metrics.RecordMemory(ctx, id)
	}

	elapsed := time.Since(start)
	o.metrics.RecordTurn(ctx, id, observe.StatusOK)
	o.metrics.TurnDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(attribute.String("session", id), attribute.String("op", op)))
	log.Debug("turn completed",
		"reply_chars", len(reply),
		"memory_recorded", remembered,
		"inherited", hctx.Inherited,
		"duration", elapsed,
	)

	o.publish(ctx, events.New(events.TypeTurnCompleted, events.TurnCompleted{
		SessionID:      id,
		UserChars:      len([]rune(userText)),
		ReplyChars:     len([]rune(reply)),
		MemoryRecorded: remembered,
		Inherited:      hctx.Inherited,
		DurationMS:     elapsed.Milliseconds(),
	}))
	return reply, nil
}

// complete runs the model call under the turn timeout and records provider
// metrics. An empty reply is an error.
func (o *Orchestrator) complete(ctx context.Context, fn completeFunc, req llm.CompletionRequest) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, o.turnTimeout)
	defer cancel()

	start := time.Now()
	reply, err := fn(cctx, req)
	o.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("provider", o.providerName)))

	if err == nil && strings.TrimSpace(reply) == "" {
		err = errEmptyReply
	}
	if err != nil {
		o.metrics.RecordProviderRequest(ctx, o.providerName, "llm", observe.StatusError)
		o.metrics.RecordProviderError(ctx, o.providerName, "llm")
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("model call timed out after %s: %w", o.turnTimeout, err)
		}
		return "", err
	}
	o.metrics.RecordProviderRequest(ctx, o.providerName, "llm", observe.StatusOK)
	return reply, nil
}

// trimHistory drops the oldest history entries while the request exceeds the
// token budget and returns how many were dropped. Counting errors disable
// trimming for the turn.
func (o *Orchestrator) trimHistory(ctx context.Context, hctx *hotctx.Context, system, userText string) int {
	if o.tokenBudget <= 0 {
		return 0
	}
	dropped := 0
	for len(hctx.History) > 0 {
		msgs := hotctx.BuildMessages(hctx, userText)
		if system != "" {
			msgs = append([]types.Message{{Role: "system", Content: system}}, msgs...)
		}
		n, err := o.llm.CountTokens(msgs)
		if err != nil {
			observe.Logger(ctx).Warn("token count failed, sending untrimmed history", "error", err)
			return dropped
		}
		if n <= o.tokenBudget {
			break
		}
		hctx.History = hctx.History[1:]
		if hctx.Inherited > len(hctx.History) {
			hctx.Inherited = len(hctx.History)
		}
		dropped++
	}
	return dropped
}

// EditLastAssistantTurn replaces the content of the most recent assistant
// turn of session id. Errors are *TurnError values matching
// [ErrUnknownSession], [session.ErrSectionNotFound], or
// [session.ErrNoEditableMessage].
func (o *Orchestrator) EditLastAssistantTurn(ctx context.Context, id, newText string) (session.Turn, error) {
	ctx, span := observe.StartSpan(observe.WithSession(ctx, id), "orchestrator.edit")
	defer span.End()

	if _, ok := o.roster.Get(id); !ok {
		return session.Turn{}, o.reject(span, &TurnError{SessionID: id, Op: "edit", Err: ErrUnknownSession})
	}

	release, err := o.locks.acquire(ctx, id)
	if err != nil {
		return session.Turn{}, o.reject(span, &TurnError{SessionID: id, Op: "edit", Err: err})
	}
	defer release()

	turn, err := o.sessions.EditLastAssistantTurn(id, newText)
	if err != nil {
		return session.Turn{}, o.reject(span, &TurnError{SessionID: id, Op: "edit", Err: err})
	}

	o.metrics.RecordEdit(ctx, id)
	o.publish(ctx, events.New(events.TypeMessageEdited, events.MessageEdited{
		SessionID: id,
		TurnID:    turn.ID,
	}))
	return turn, nil
}

func (o *Orchestrator) reject(span trace.Span, err *TurnError) error {
	span.SetStatus(codes.Error, err.Error())
	return err
}

// publish sends e without letting a bus failure affect the caller.
func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if err := o.publisher.Publish(ctx, e); err != nil {
		observe.Logger(ctx).Warn("publish event failed", "type", e.Type, "error", err)
	}
}
