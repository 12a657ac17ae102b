// Package hotctx composes the context sent with every expert LLM call.
//
// The context has two parts that are fetched concurrently:
//
//  1. The history view: the session's own conversation log followed by one
//     synthetic "Inherited from ..." assistant turn per history parent that
//     has spoken.
//  2. The long-term memory digest of the session and its memory parents.
//
// Composition is read only; it never writes to the session or memory stores.
// Use [FormatSystemPrompt] and [BuildMessages] to turn a [Context] into a
// completion request.
package hotctx

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/projectpartnersllc/ScriptBuilder.AI/internal/session"
)

// ─────────────────────────────────────────────────────────────────────────────
// Collaborators
// ─────────────────────────────────────────────────────────────────────────────

// HistorySource reads conversation logs without creating them.
// *session.Store satisfies it.
type HistorySource interface {
	View(id string) []session.Turn
	Last(id string) (session.Turn, bool)
}

// ParentLookup resolves history parents. *inheritance.Graph satisfies it.
type ParentLookup interface {
	HistoryParents(id string) []string
}

// MemorySource renders long-term memory digests. *memory.Store satisfies it.
type MemorySource interface {
	Digest(id string) string
}

// ─────────────────────────────────────────────────────────────────────────────
// Public types
// ─────────────────────────────────────────────────────────────────────────────

// Context is the composed, read-only view for one session.
type Context struct {
	// SessionID is the session the view was composed for.
	SessionID string

	// History is the session's own log followed by inherited view entries.
	History []session.Turn

	// MemoryDigest is the rendered long-term memory, empty when none is retained.
	MemoryDigest string

	// Inherited is the number of inherited entries at the end of History.
	Inherited int

	// AssemblyDuration records how long [Composer.Compose] took.
	AssemblyDuration time.Duration
}

// OwnHistory returns the part of History that comes from the session's own log.
func (c *Context) OwnHistory() []session.Turn {
	return c.History[:len(c.History)-c.Inherited]
}

// ─────────────────────────────────────────────────────────────────────────────
// Composer
// ─────────────────────────────────────────────────────────────────────────────

// Composer builds a [Context] from the session store, inheritance graph, and
// long-term memory store.
type Composer struct {
	history HistorySource
	parents ParentLookup
	memory  MemorySource
}

// NewComposer creates a Composer.
func NewComposer(history HistorySource, parents ParentLookup, memory MemorySource) *Composer {
	return &Composer{history: history, parents: parents, memory: memory}
}

// Compose returns the history view and memory digest for id.
//
// No log is created: a session that has never completed a turn composes to an
// empty history. A parent whose log is missing or empty contributes nothing.
func (c *Composer) Compose(ctx context.Context, id string) (*Context, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("hot context: compose %q: %w", id, err)
	}

	var (
		history   []session.Turn
		inherited int
		digest    string
	)

	eg, egCtx := errgroup.WithContext(ctx)

	// ── goroutine 1: own log + inherited view entries ────────────────────────
	eg.Go(func() error {
		history = c.history.View(id)
		for _, p := range c.parents.HistoryParents(id) {
			if err := egCtx.Err(); err != nil {
				return fmt.Errorf("hot context: history for %q: %w", id, err)
			}
			last, ok := c.history.Last(p)
			if !ok {
				continue
			}
			history = append(history, session.Turn{
				ID:        last.ID,
				Role:      session.RoleAssistant,
				Content:   "Inherited from " + p + ": " + last.Content,
				CreatedAt: last.CreatedAt,
				Inherited: true,
			})
			inherited++
		}
		return nil
	})

	// ── goroutine 2: long-term memory digest ─────────────────────────────────
	eg.Go(func() error {
		digest = c.memory.Digest(id)
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return &Context{
		SessionID:        id,
		History:          history,
		MemoryDigest:     digest,
		Inherited:        inherited,
		AssemblyDuration: time.Since(start),
	}, nil
}
