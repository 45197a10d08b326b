package trace

import (
	"errors"
	"fmt"
	"sort"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/domain/consistency"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
)

// Row is one requirement of the matrix with the artifacts tracing to it.
type Row struct {
	RequirementID  string   `json:"requirement_id"`
	Title          string   `json:"title"`
	Design         []string `json:"design"`
	API            []string `json:"api"`
	Implementation []string `json:"implementation"`
	Tests          []string `json:"tests"`
	Untested       bool     `json:"untested"`
}

// Matrix is the flattened traceability graph, one row per requirement.
type Matrix struct {
	Rows     []Row               `json:"rows"`
	Links    []Link              `json:"links"`
	Rejected []consistency.Issue `json:"rejected,omitempty"`
}

// Untested returns the ids of requirements no test traces to.
func (m Matrix) Untested() []string {
	out := make([]string, 0)
	for _, r := range m.Rows {
		if r.Untested {
			out = append(out, r.RequirementID)
		}
	}
	return out
}

// Input is everything the builder folds into the graph.
type Input struct {
	Entities []artifact.SpecEntity
	Facts    []artifact.CodeFact
	Tests    []artifact.TestFact
	// Findings supply the spec/code pairings computed by drift detection.
	Findings []drift.Finding
}

// Builder constructs traceability graphs.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Graph collects every trace link, rejecting those that would close a cycle.
func (b *Builder) Graph(in Input) (*Graph, []consistency.Issue) {
	entities := artifact.Index(in.Entities)
	facts := make(map[string]bool, len(in.Facts))
	for _, f := range in.Facts {
		facts[f.ID] = true
	}
	known := func(id string) bool {
		_, ok := entities[id]
		return ok || facts[id]
	}

	var candidates []Link
	for _, e := range in.Entities {
		for _, l := range e.Links {
			if l.Relation.Structural() && known(l.Target) {
				candidates = append(candidates, Link{From: e.ID, To: l.Target, Relation: l.Relation})
			}
		}
	}
	for _, f := range in.Findings {
		if f.SpecEntityID == "" || f.CodeFactID == "" || !facts[f.CodeFactID] {
			continue
		}
		if f.Status == drift.StatusMatched || f.Status == drift.StatusChanged {
			candidates = append(candidates, Link{From: f.CodeFactID, To: f.SpecEntityID, Relation: artifact.RelationImplements})
		}
	}
	for _, f := range in.Facts {
		for _, id := range f.TraceIDs {
			if _, ok := entities[id]; ok {
				candidates = append(candidates, Link{From: f.ID, To: id, Relation: artifact.RelationImplements})
			}
		}
	}
	for _, t := range in.Tests {
		for _, target := range t.Targets {
			if known(target) {
				candidates = append(candidates, Link{From: t.ID, To: target, Relation: artifact.RelationVerifies})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].From != candidates[j].From {
			return candidates[i].From < candidates[j].From
		}
		if candidates[i].To != candidates[j].To {
			return candidates[i].To < candidates[j].To
		}
		return candidates[i].Relation < candidates[j].Relation
	})

	g := NewGraph()
	var rejected []consistency.Issue
	for _, l := range candidates {
		err := g.AddLink(l)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrCyclicLink) || errors.Is(err, ErrSelfLink) {
			rejected = append(rejected, consistency.Issue{
				Category:          consistency.CategoryCycles,
				RuleID:            "no-cycle",
				Level:             consistency.LevelError,
				InvolvedEntityIDs: []string{l.From, l.To},
				Message:           fmt.Sprintf("trace link %s -[%s]-> %s rejected: %v", l.From, l.Relation, l.To, err),
			})
		}
	}
	return g, rejected
}

// Build folds the input into a matrix with one row per requirement, ordered by id.
func (b *Builder) Build(in Input) Matrix {
	g, rejected := b.Graph(in)
	entities := artifact.Index(in.Entities)
	facts := make(map[string]bool, len(in.Facts))
	for _, f := range in.Facts {
		facts[f.ID] = true
	}
	tests := make(map[string]bool, len(in.Tests))
	for _, t := range in.Tests {
		tests[t.ID] = true
	}

	reqs := artifact.FilterKind(in.Entities, artifact.KindRequirement)
	artifact.SortEntities(reqs)

	rows := make([]Row, 0, len(reqs))
	seen := make(map[string]bool)
	for _, r := range reqs {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		row := Row{
			RequirementID:  r.ID,
			Title:          r.Title,
			Design:         []string{},
			API:            []string{},
			Implementation: []string{},
			Tests:          []string{},
		}
		for _, id := range g.Upstream(r.ID) {
			switch {
			case tests[id]:
				row.Tests = append(row.Tests, id)
			case facts[id]:
				row.Implementation = append(row.Implementation, id)
			default:
				switch entities[id].Kind {
				case artifact.KindDesignElement:
					row.Design = append(row.Design, id)
				case artifact.KindAPIContract:
					row.API = append(row.API, id)
				}
			}
		}
		row.Untested = len(row.Tests) == 0
		rows = append(rows, row)
	}

	return Matrix{Rows: rows, Links: g.Links(), Rejected: rejected}
}
