// Package inheritance holds the static parent table that lets one expert
// session borrow context from others.
//
// The same table is read two ways. [Graph.HistoryParents] names the sessions
// whose latest turn is folded into a child's history view, and
// [Graph.MemoryParents] names the sessions whose long-term memory is folded
// into its digest. Both lookups are single hop; the graph is never walked
// transitively, so cycles in the table are harmless.
package inheritance

import "slices"

// Graph is an immutable child → parents table. The zero value has no edges.
type Graph struct {
	parents map[string][]string
}

// New builds a Graph from table. The input is copied. Self edges and
// repeated parents are dropped; declared parent order is otherwise kept.
//
// Dropping self edges changes what the default panel's expert1 → expert1
// entry does: read literally it would add an "Inherited from expert1:" line
// repeating expert1's own memory in its digest, and here it adds nothing.
func New(table map[string][]string) *Graph {
	g := &Graph{parents: make(map[string][]string, len(table))}
	for child, ps := range table {
		seen := make(map[string]struct{}, len(ps))
		clean := make([]string, 0, len(ps))
		for _, p := range ps {
			if p == "" || p == child {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			clean = append(clean, p)
		}
		g.parents[child] = clean
	}
	return g
}

// HistoryParents returns the parents whose most recent turn is surfaced in the
// history view of id.
func (g *Graph) HistoryParents(id string) []string {
	return g.lookup(id)
}

// MemoryParents returns the parents whose long-term memory is included in the
// digest of id.
func (g *Graph) MemoryParents(id string) []string {
	return g.lookup(id)
}

// Children returns every session that declares id as a parent, sorted.
func (g *Graph) Children(id string) []string {
	if g == nil {
		return nil
	}
	var out []string
	for child, ps := range g.parents {
		if slices.Contains(ps, id) {
			out = append(out, child)
		}
	}
	slices.Sort(out)
	return out
}

// Table returns a copy of the cleaned table.
func (g *Graph) Table() map[string][]string {
	out := make(map[string][]string)
	if g == nil {
		return out
	}
	for child, ps := range g.parents {
		out[child] = slices.Clone(ps)
	}
	return out
}

func (g *Graph) lookup(id string) []string {
	if g == nil {
		return []string{}
	}
	ps, ok := g.parents[id]
	if !ok {
		return []string{}
	}
	return slices.Clone(ps)
}
