package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/domain/spec"
)

// Documents names the document that holds each entity kind.
type Documents map[artifact.EntityKind]string

// DefaultDocuments returns the conventional document names.
func DefaultDocuments() Documents {
	return Documents{
		artifact.KindRequirement:   "requirements.md",
		artifact.KindDesignElement: "design.md",
		artifact.KindAPIContract:   "api-spec.md",
		artifact.KindTask:          "tasks.md",
	}
}

// Policy controls which findings the planner may resolve.
type Policy struct {
	// PruneUnimplemented deletes design and api blocks that have no code.
	PruneUnimplemented bool `json:"prune_unimplemented" yaml:"prune_unimplemented"`
}

// Input is the drift result and corpus a plan is computed from.
type Input struct {
	Findings []drift.Finding
	Entities []artifact.SpecEntity
	Facts    []artifact.CodeFact
	Scope    Scope
}

// Plan is the ordered set of changes plus what could not be planned.
type Plan struct {
	Changes    []Change     `json:"changes"`
	Unresolved []Unresolved `json:"unresolved"`
}

// Planner turns drift findings into document edits. It never touches storage.
type Planner struct {
	docs   Documents
	policy Policy
}

// NewPlanner creates a planner. Missing document names fall back to the defaults.
func NewPlanner(docs Documents, policy Policy) *Planner {
	merged := DefaultDocuments()
	for k, v := range docs {
		if v != "" {
			merged[k] = v
		}
	}
	return &Planner{docs: merged, policy: policy}
}

// Plan computes the changes for the findings inside the input's scope.
func (p *Planner) Plan(in Input) Plan {
	entities := artifact.Index(in.Entities)
	facts := make(map[string]artifact.CodeFact, len(in.Facts))
	for _, f := range in.Facts {
		facts[f.ID] = f
	}
	ids := make(map[artifact.EntityKind][]string)
	for _, e := range in.Entities {
		ids[e.Kind] = append(ids[e.Kind], e.ID)
	}
	levels := headingLevels(in.Entities)

	findings := append([]drift.Finding(nil), in.Findings...)
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].SortKey() != findings[j].SortKey() {
			return findings[i].SortKey() < findings[j].SortKey()
		}
		return findings[i].ID < findings[j].ID
	})

	plan := Plan{Changes: []Change{}, Unresolved: []Unresolved{}}
	unresolved := func(f drift.Finding, reason string) {
		plan.Unresolved = append(plan.Unresolved, Unresolved{
			FindingID:    f.ID,
			SpecEntityID: f.SpecEntityID,
			CodeFactID:   f.CodeFactID,
			Reason:       reason,
		})
	}

	for _, f := range findings {
		if !in.Scope.Includes(f) {
			continue
		}
		switch f.Status {
		case drift.StatusMissingInSpec:
			fact, ok := facts[f.CodeFactID]
			if !ok {
				unresolved(f, "code fact is no longer present")
				continue
			}
			kind := artifact.KindDesignElement
			if fact.Kind == artifact.FactAPIEndpoint {
				kind = artifact.KindAPIContract
			}
			doc := p.docs[kind]
			id := artifact.NextID(kind, ids[kind])
			ids[kind] = append(ids[kind], id)
			block := RenderBlock(levels[doc], id, fact)
			plan.Changes = append(plan.Changes, Change{
				ID:                   artifact.StableID("sync", f.ID, string(OpInsert)),
				TargetDocument:       doc,
				Operation:            OpInsert,
				EntityID:             id,
				AfterText:            block,
				OriginatingFindingID: f.ID,
				Preview:              Preview(doc, "", block),
			})

		case drift.StatusChanged:
			e, ok := entities[f.SpecEntityID]
			if !ok {
				unresolved(f, "spec entity is no longer present")
				continue
			}
			changes, reasons := updates(f, e)
			plan.Changes = append(plan.Changes, changes...)
			for _, r := range reasons {
				unresolved(f, r)
			}

		case drift.StatusMissingInCode:
			e, ok := entities[f.SpecEntityID]
			prunable := e.Kind == artifact.KindDesignElement || e.Kind == artifact.KindAPIContract
			if !ok || !p.policy.PruneUnimplemented || !prunable || e.BlockText == "" {
				unresolved(f, fmt.Sprintf("%s has no implementation; implement it or remove it from %s", f.SpecEntityID, f.Document))
				continue
			}
			plan.Changes = append(plan.Changes, Change{
				ID:                   artifact.StableID("sync", f.ID, string(OpDelete)),
				TargetDocument:       e.SourceDocument,
				Operation:            OpDelete,
				EntityID:             e.ID,
				BeforeText:           e.BlockText,
				OriginatingFindingID: f.ID,
				Preview:              Preview(e.SourceDocument, e.BlockText, ""),
			})
		}
	}

	SortChanges(plan.Changes)
	return plan
}

// updates rewrites each differing attribute on its source line. Attributes
// sharing a line produce a single change.
func updates(f drift.Finding, e artifact.SpecEntity) ([]Change, []string) {
	var order []string
	rewritten := make(map[string]string)
	var reasons []string
	for _, d := range f.Differences {
		raw := e.RawLines[d.Attribute]
		if raw == "" {
			reasons = append(reasons, fmt.Sprintf("%s.%s has no editable source line", e.ID, d.Attribute))
			continue
		}
		current, seen := rewritten[raw]
		if !seen {
			current = raw
			order = append(order, raw)
		}
		next, ok := spec.RewriteAttribute(current, d.Spec, d.Code)
		if !ok {
			rewritten[raw] = current
			reasons = append(reasons, fmt.Sprintf("%s.%s could not be located on %q", e.ID, d.Attribute, strings.TrimSpace(raw)))
			continue
		}
		rewritten[raw] = next
	}

	anchor := e.RawLines["title"]
	if anchor == "" && !strings.Contains(e.BlockText, "\n") {
		anchor = e.BlockText
	}
	var out []Change
	for _, raw := range order {
		after := rewritten[raw]
		if after == raw {
			continue
		}
		out = append(out, Change{
			ID:                   artifact.StableID("sync", f.ID, string(OpUpdate), raw),
			TargetDocument:       e.SourceDocument,
			Operation:            OpUpdate,
			EntityID:             e.ID,
			Anchor:               anchor,
			BeforeText:           raw,
			AfterText:            after,
			OriginatingFindingID: f.ID,
			Preview:              Preview(e.SourceDocument, raw+"\n", after+"\n"),
		})
	}
	return out, reasons
}

// headingLevels finds the heading marker each document already uses for entities.
func headingLevels(entities []artifact.SpecEntity) map[string]string {
	levels := make(map[string]string)
	for _, e := range entities {
		if _, ok := levels[e.SourceDocument]; ok {
			continue
		}
		title := strings.TrimSpace(e.RawLines["title"])
		hashes := title[:len(title)-len(strings.TrimLeft(title, "#"))]
		if hashes != "" {
			levels[e.SourceDocument] = hashes
		}
	}
	return levels
}
