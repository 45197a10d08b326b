// Package trace folds spec entities, code facts and tests into a directed
// traceability graph and flattens it into a requirements matrix.
package trace

import (
	"fmt"
	"sort"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

// Link is a directed traceability edge, pointing from the downstream artifact
// to the one it satisfies, implements or verifies.
type Link struct {
	From     string            `json:"from"`
	To       string            `json:"to"`
	Relation artifact.Relation `json:"relation"`
}

// Graph is a DAG of trace links. Edges that would close a cycle are refused.
type Graph struct {
	out   map[string][]Link
	in    map[string][]Link
	links []Link
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		out: make(map[string][]Link),
		in:  make(map[string][]Link),
	}
}

// AddLink inserts an edge. It returns ErrSelfLink or ErrCyclicLink, leaving the
// graph unchanged, when the edge would make the graph cyclic. Duplicate edges
// are ignored.
func (g *Graph) AddLink(l Link) error {
	if l.From == l.To {
		return fmt.Errorf("%w: %s", ErrSelfLink, l.From)
	}
	for _, existing := range g.out[l.From] {
		if existing.To == l.To && existing.Relation == l.Relation {
			return nil
		}
	}
	if g.reaches(l.To, l.From) {
		return fmt.Errorf("%w: %s -> %s", ErrCyclicLink, l.From, l.To)
	}
	g.out[l.From] = append(g.out[l.From], l)
	g.in[l.To] = append(g.in[l.To], l)
	g.links = append(g.links, l)
	return nil
}

// reaches reports whether target is reachable from start along edge direction.
func (g *Graph) reaches(start, target string) bool {
	visited := make(map[string]bool)
	var dfs func(id string) bool
	dfs = func(id string) bool {
		if id == target {
			return true
		}
		visited[id] = true
		for _, l := range g.out[id] {
			if !visited[l.To] && dfs(l.To) {
				return true
			}
		}
		return false
	}
	return dfs(start)
}

// Links returns every edge ordered by from, to and relation.
func (g *Graph) Links() []Link {
	out := append([]Link(nil), g.links...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		if out[i].To != out[j].To {
			return out[i].To < out[j].To
		}
		return out[i].Relation < out[j].Relation
	})
	return out
}

// Upstream returns, in ascending order, every node from which id is reachable.
func (g *Graph) Upstream(id string) []string {
	visited := make(map[string]bool)
	var visit func(n string)
	visit = func(n string) {
		for _, l := range g.in[n] {
			if !visited[l.From] {
				visited[l.From] = true
				visit(l.From)
			}
		}
	}
	visit(id)

	out := make([]string, 0, len(visited))
	for n := range visited {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
