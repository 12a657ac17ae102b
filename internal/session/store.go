package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store keeps one conversation log per session identifier.
//
// Reads of another session's log (as done for inheritance) may observe a
// state that is slightly behind an in-flight turn on that session.
type Store struct {
	mu   sync.RWMutex
	logs map[string][]Turn
	now  func() time.Time
}

// StoreOption configures a [Store].
type StoreOption func(*Store)

// WithClock overrides the time source used to stamp appended turns.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		logs: make(map[string][]Turn),
		now:  func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Log returns a copy of the conversation log for id, creating an empty log
// if none exists yet. Repeated calls are idempotent.
func (s *Store) Log(id string) []Turn {
	s.mu.RLock()
	log, ok := s.logs[id]
	if ok {
		out := cloneTurns(log)
		s.mu.RUnlock()
		return out
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if log, ok = s.logs[id]; !ok {
		s.logs[id] = []Turn{}
		return []Turn{}
	}
	return cloneTurns(log)
}

// View returns a copy of the conversation log for id without creating it.
// A missing log yields an empty slice. Composition and history listing read
// through View so that failed or read-only requests leave no trace.
func (s *Store) View(id string) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTurns(s.logs[id])
}

// Append adds turns to the end of the log for id in the given order. Turns
// without an ID or timestamp are stamped. Existing turns are never reordered
// or removed. Inherited turns are rejected.
func (s *Store) Append(id string, turns ...Turn) error {
	for i := range turns {
		if turns[i].Inherited {
			return fmt.Errorf("session: append %q: turn %d is an inherited view entry", id, i)
		}
		if turns[i].Role != RoleUser && turns[i].Role != RoleAssistant {
			return fmt.Errorf("session: append %q: invalid role %q", id, turns[i].Role)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		s.logs[id] = append(s.logs[id], t)
	}
	if _, ok := s.logs[id]; !ok {
		s.logs[id] = []Turn{}
	}
	return nil
}

// Last returns the most recent turn of id. It reports false when the log does
// not exist or is empty, and never creates a log.
func (s *Store) Last(id string) (Turn, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.logs[id]
	if len(log) == 0 {
		return Turn{}, false
	}
	return log[len(log)-1], true
}

// Exists reports whether a log has been created for id.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.logs[id]
	return ok
}

// Len returns the number of turns in the log for id without creating it.
func (s *Store) Len(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.logs[id])
}

// Snapshot returns a deep copy of every log.
func (s *Store) Snapshot() map[string][]Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]Turn, len(s.logs))
	for id, log := range s.logs {
		out[id] = cloneTurns(log)
	}
	return out
}

// EditLastAssistantTurn replaces the content of the most recent assistant
// turn in the log for id and returns the edited turn.
//
// It returns an error wrapping [ErrSectionNotFound] when there is no log or
// the log is empty, and one wrapping [ErrNoEditableMessage] when the log has
// no assistant turn. The log is unchanged on error.
func (s *Store) EditLastAssistantTurn(id, newText string) (Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[id]
	idx, err := EditLastAssistant(log, newText)
	if err != nil {
		return Turn{}, fmt.Errorf("session: edit %q: %w", id, err)
	}
	return log[idx], nil
}

func cloneTurns(in []Turn) []Turn {
	out := make([]Turn, len(in))
	copy(out, in)
	return out
}
