// Package memory keeps a small rolling record of notable user utterances per
// expert session and renders it as a digest for the system prompt.
package memory

import (
	"slices"
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// DefaultCapacity is the number of entries retained per session.
	DefaultCapacity = 5

	// DefaultMinLength is the rune count an utterance must exceed to be recorded.
	DefaultMinLength = 20

	entryPrefix = "User said: "
)

// ParentLookup resolves the sessions whose memory is included in a digest.
// *inheritance.Graph satisfies it.
type ParentLookup interface {
	MemoryParents(id string) []string
}

// Store is a per-session bounded FIFO of memory entries. It is safe for
// concurrent use.
type Store struct {
	parents   ParentLookup
	capacity  int
	minLength int

	mu      sync.RWMutex
	entries map[string][]string
}

// Option configures a [Store].
type Option func(*Store)

// WithCapacity sets the per-session entry limit. Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithMinLength sets the exclusive rune threshold for recording. Negative
// values are ignored.
func WithMinLength(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.minLength = n
		}
	}
}

// NewStore returns an empty Store. parents may be nil, in which case digests
// contain only the session's own entries.
func NewStore(parents ParentLookup, opts ...Option) *Store {
	s := &Store{
		parents:   parents,
		capacity:  DefaultCapacity,
		minLength: DefaultMinLength,
		entries:   make(map[string][]string),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Record stores "User said: <utterance>" for id when the utterance is longer
// than the minimum length, evicting the oldest entries beyond capacity. It
// reports whether an entry was added.
func (s *Store) Record(id, utterance string) bool {
	if utf8.RuneCountInString(utterance) <= s.minLength {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.entries[id], entryPrefix+utterance)
	if over := len(list) - s.capacity; over > 0 {
		list = slices.Clone(list[over:])
	}
	s.entries[id] = list
	return true
}

// Entries returns a copy of the retained entries for id, oldest first.
func (s *Store) Entries(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries[id])
}

// Digest renders the memory of id followed by the memory of each parent:
//
//	Session expert4 memory: User said: a. User said: b
//	Inherited from expert2: User said: c
//
// Sessions without entries are omitted; the result is empty when nothing is retained.
func (s *Store) Digest(id string) string {
	var parents []string
	if s.parents != nil {
		parents = s.parents.MemoryParents(id)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []string
	if own := s.entries[id]; len(own) > 0 {
		lines = append(lines, "Session "+id+" memory: "+strings.Join(own, ". "))
	}
	for _, p := range parents {
		if pe := s.entries[p]; len(pe) > 0 {
			lines = append(lines, "Inherited from "+p+": "+strings.Join(pe, ". "))
		}
	}
	return strings.Join(lines, "\n")
}

// Snapshot returns a deep copy of every session's entries.
func (s *Store) Snapshot() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string, len(s.entries))
	for id, e := range s.entries {
		out[id] = slices.Clone(e)
	}
	return out
}
