// Package agent defines the expert personas served by ScriptBuilder and the
// [Roster] that holds them.
//
// A session identifier (for example "expert3") names exactly one [Expert].
// The set is fixed at startup from configuration, or from [DefaultExperts]
// when none is configured, and is never changed while the process runs.
package agent

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestThreshold is the minimum Jaro-Winkler similarity for [Roster.Suggest].
const suggestThreshold = 0.8

// Expert is one persona a user can chat with.
type Expert struct {
	// ID is the session identifier, e.g. "expert1".
	ID string

	// DisplayName is the human-facing label, e.g. "Expert One".
	DisplayName string

	// Persona is the system prompt that defines the expert's role.
	Persona string

	// Parents lists the sessions this expert inherits context from.
	Parents []string
}

// Roster is the immutable set of experts. It is safe for concurrent use.
type Roster struct {
	experts map[string]Expert
	ids     []string
}

// NewRoster validates experts and builds a Roster. IDs must be non-empty and
// unique, and every parent must name an expert in the same list.
func NewRoster(experts []Expert) (*Roster, error) {
	if len(experts) == 0 {
		return nil, errors.New("agent: roster must contain at least one expert")
	}

	r := &Roster{experts: make(map[string]Expert, len(experts))}
	var errs []error
	for i, e := range experts {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("agent: expert[%d]: id must not be empty", i))
			continue
		}
		if _, dup := r.experts[e.ID]; dup {
			errs = append(errs, fmt.Errorf("agent: expert[%d]: duplicate id %q", i, e.ID))
			continue
		}
		e.Parents = slices.Clone(e.Parents)
		if e.DisplayName == "" {
			e.DisplayName = e.ID
		}
		r.experts[e.ID] = e
		r.ids = append(r.ids, e.ID)
	}
	for _, e := range r.experts {
		for _, p := range e.Parents {
			if _, ok := r.experts[p]; !ok {
				errs = append(errs, fmt.Errorf("agent: expert %q: unknown parent %q", e.ID, p))
			}
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.Sort(r.ids)
	return r, nil
}

// Has reports whether id names a known expert.
func (r *Roster) Has(id string) bool {
	_, ok := r.experts[id]
	return ok
}

// Get returns the expert for id.
func (r *Roster) Get(id string) (Expert, bool) {
	e, ok := r.experts[id]
	if ok {
		e.Parents = slices.Clone(e.Parents)
	}
	return e, ok
}

// IDs returns every session identifier in sorted order.
func (r *Roster) IDs() []string {
	return slices.Clone(r.ids)
}

// Experts returns every expert ordered by ID.
func (r *Roster) Experts() []Expert {
	out := make([]Expert, 0, len(r.ids))
	for _, id := range r.ids {
		e, _ := r.Get(id)
		out = append(out, e)
	}
	return out
}

// InheritanceTable returns the declared parents of every expert, suitable for
// inheritance.New.
func (r *Roster) InheritanceTable() map[string][]string {
	out := make(map[string][]string, len(r.experts))
	for id, e := range r.experts {
		out[id] = slices.Clone(e.Parents)
	}
	return out
}

// Suggest returns the known ID most similar to id, or "" when nothing is
// reasonably close or id is already known.
func (r *Roster) Suggest(id string) string {
	needle := strings.ToLower(strings.TrimSpace(id))
	if needle == "" || r.Has(id) {
		return ""
	}
	best, bestScore := "", 0.0
	for _, candidate := range r.ids {
		score := matchr.JaroWinkler(needle, strings.ToLower(candidate), false)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < suggestThreshold {
		return ""
	}
	return best
}
