package consistency

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/domain/spec"
	"github.com/xeipuuv/gojsonschema"
)

// Input is the corpus a validation run checks.
type Input struct {
	Entities    []artifact.SpecEntity
	ParseErrors []error
	Strict      bool
}

// Rule is one closed check over the corpus.
type Rule struct {
	Category string
	ID       string
	Check    func(in Input) []Issue
}

// DefaultRules returns the rule set in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Category: CategoryParse, ID: "malformed-document", Check: checkParse},
		{Category: CategoryUniqueness, ID: "unique-id", Check: checkUnique},
		{Category: CategoryReferences, ID: "link-resolves", Check: checkReferences},
		{Category: CategoryCycles, ID: "no-cycle", Check: checkCycles},
		{Category: CategoryAPI, ID: "api-backlink", Check: checkAPIBacklink},
		{Category: CategoryContradictions, ID: "contradictory-attribute", Check: checkContradictions},
		{Category: CategorySchema, ID: "schema-valid", Check: checkSchema},
		{Category: CategoryOrphans, ID: "orphan", Check: checkOrphans},
	}
}

// ParseIssues converts document extraction failures into parse issues.
func ParseIssues(errs []error) []Issue {
	issues := checkParse(Input{ParseErrors: errs})
	if issues == nil {
		return []Issue{}
	}
	return issues
}

func checkParse(in Input) []Issue {
	var issues []Issue
	for _, err := range in.ParseErrors {
		issue := Issue{
			Category:          CategoryParse,
			RuleID:            "malformed-document",
			Level:             LevelError,
			InvolvedEntityIDs: []string{},
			Message:           err.Error(),
		}
		var mde *spec.MalformedDocumentError
		if errors.As(err, &mde) {
			issue.Document = mde.Document
			issue.Line = mde.Line
			issue.Message = mde.Reason
		}
		issues = append(issues, issue)
	}
	return issues
}

func checkUnique(in Input) []Issue {
	type key struct {
		kind artifact.EntityKind
		id   string
	}
	seen := make(map[key][]artifact.SpecEntity)
	var order []key
	for _, e := range in.Entities {
		k := key{e.Kind, e.ID}
		if _, ok := seen[k]; !ok {
			order = append(order, k)
		}
		seen[k] = append(seen[k], e)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i].id != order[j].id {
			return order[i].id < order[j].id
		}
		return order[i].kind < order[j].kind
	})

	var issues []Issue
	for _, k := range order {
		dups := seen[k]
		if len(dups) < 2 {
			continue
		}
		locs := make([]string, len(dups))
		for i, d := range dups {
			locs[i] = fmt.Sprintf("%s:%d", d.SourceDocument, d.SourceLine)
		}
		issues = append(issues, Issue{
			Category:          CategoryUniqueness,
			RuleID:            "unique-id",
			Level:             LevelError,
			InvolvedEntityIDs: []string{k.id},
			Message:           fmt.Sprintf("%s %s is declared %d times (%s)", k.kind, k.id, len(dups), strings.Join(locs, ", ")),
			Document:          dups[1].SourceDocument,
			Line:              dups[1].SourceLine,
		})
	}
	return issues
}

func checkReferences(in Input) []Issue {
	idx := artifact.Index(in.Entities)
	var issues []Issue
	for _, e := range sorted(in.Entities) {
		for _, l := range e.Links {
			if _, ok := idx[l.Target]; ok {
				continue
			}
			issues = append(issues, Issue{
				Category:          CategoryReferences,
				RuleID:            "link-resolves",
				Level:             LevelError,
				InvolvedEntityIDs: []string{e.ID, l.Target},
				Message:           fmt.Sprintf("%s references %s, which is not declared in any document", e.ID, l.Target),
				Document:          e.SourceDocument,
				Line:              e.SourceLine,
			})
		}
	}
	return issues
}

func checkCycles(in Input) []Issue {
	var issues []Issue
	for _, cycle := range FindCycles(in.Entities) {
		path := append(append([]string{}, cycle...), cycle[0])
		issues = append(issues, Issue{
			Category:          CategoryCycles,
			RuleID:            "no-cycle",
			Level:             LevelError,
			InvolvedEntityIDs: cycle,
			Message:           "cyclic traceability: " + strings.Join(path, " -> "),
		})
	}
	return issues
}

// FindCycles returns every elementary cycle reachable through satisfies and
// implements links, each rotated to start at its smallest id.
func FindCycles(entities []artifact.SpecEntity) [][]string {
	edges := make(map[string][]string)
	var nodes []string
	for _, e := range sorted(entities) {
		if _, ok := edges[e.ID]; !ok {
			nodes = append(nodes, e.ID)
		}
		for _, l := range e.Links {
			if l.Relation.Structural() {
				edges[e.ID] = append(edges[e.ID], l.Target)
			}
		}
	}
	for id := range edges {
		sort.Strings(edges[id])
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int)
	var stack []string
	seen := make(map[string]bool)
	var cycles [][]string

	var dfs func(id string)
	dfs = func(id string) {
		color[id] = grey
		stack = append(stack, id)
		for _, next := range edges[id] {
			switch color[next] {
			case white:
				dfs(next)
			case grey:
				start := len(stack) - 1
				for stack[start] != next {
					start--
				}
				cycle := canonical(stack[start:])
				if key := strings.Join(cycle, "\x00"); !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[id] = black
	}
	for _, id := range nodes {
		if color[id] == white {
			dfs(id)
		}
	}

	sort.Slice(cycles, func(i, j int) bool {
		return strings.Join(cycles[i], " ") < strings.Join(cycles[j], " ")
	})
	return cycles
}

func canonical(cycle []string) []string {
	minAt := 0
	for i, id := range cycle {
		if id < cycle[minAt] {
			minAt = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[minAt:]...)
	return append(out, cycle[:minAt]...)
}

func checkAPIBacklink(in Input) []Issue {
	idx := artifact.Index(in.Entities)
	reported := make(map[string]bool)
	var issues []Issue
	for _, d := range sorted(artifact.FilterKind(in.Entities, artifact.KindDesignElement)) {
		for _, l := range d.Links {
			api, ok := idx[l.Target]
			if !ok || api.Kind != artifact.KindAPIContract || reported[api.ID] {
				continue
			}
			if linksToRequirement(api, idx) {
				continue
			}
			reported[api.ID] = true
			issues = append(issues, Issue{
				Category:          CategoryAPI,
				RuleID:            "api-backlink",
				Level:             LevelError,
				InvolvedEntityIDs: []string{api.ID, d.ID},
				Message:           fmt.Sprintf("%s is referenced by %s but does not trace back to any requirement", api.ID, d.ID),
				Document:          api.SourceDocument,
				Line:              api.SourceLine,
			})
		}
	}
	return issues
}

func linksToRequirement(e artifact.SpecEntity, idx map[string]artifact.SpecEntity) bool {
	for _, l := range e.Links {
		if t, ok := idx[l.Target]; ok && t.Kind == artifact.KindRequirement {
			return true
		}
	}
	return false
}

// contractNeutral lists contract attributes that may differ between two
// declarations of the same endpoint without contradicting each other.
var contractNeutral = map[string]bool{
	"description": true, "title": true, "status": true, "priority": true,
	"method": true, "path": true, "endpoint": true, "route": true, "notes": true,
}

func checkContradictions(in Input) []Issue {
	groups := make(map[string][]artifact.SpecEntity)
	var keys []string
	for _, api := range sorted(artifact.FilterKind(in.Entities, artifact.KindAPIContract)) {
		key := artifact.EndpointKey(api.Attr("method"), api.Attr("path"))
		if key == "" {
			continue
		}
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], api)
	}
	sort.Strings(keys)

	var issues []Issue
	for _, key := range keys {
		group := groups[key]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.ID == b.ID {
					continue
				}
				var differing []string
				for _, attr := range artifact.SortedKeys(a.Attributes) {
					if contractNeutral[attr] || spec.IsLinkAttribute(attr) {
						continue
					}
					other, ok := b.Attributes[attr]
					if ok && !strings.EqualFold(strings.TrimSpace(other), strings.TrimSpace(a.Attributes[attr])) {
						differing = append(differing, attr)
					}
				}
				if len(differing) == 0 {
					continue
				}
				issues = append(issues, Issue{
					Category:          CategoryContradictions,
					RuleID:            "contradictory-attribute",
					Level:             LevelError,
					InvolvedEntityIDs: []string{a.ID, b.ID},
					Message: fmt.Sprintf("%s and %s both declare %s %s with different %s",
						a.ID, b.ID, a.Attr("method"), a.Attr("path"), strings.Join(differing, ", ")),
					Document: b.SourceDocument,
					Line:     b.SourceLine,
				})
			}
		}
	}
	return issues
}

func checkSchema(in Input) []Issue {
	var issues []Issue
	for _, api := range sorted(artifact.FilterKind(in.Entities, artifact.KindAPIContract)) {
		raw := api.Attr("schema")
		if raw == "" {
			continue
		}
		if _, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw)); err != nil {
			issues = append(issues, Issue{
				Category:          CategorySchema,
				RuleID:            "schema-valid",
				Level:             LevelError,
				InvolvedEntityIDs: []string{api.ID},
				Message:           fmt.Sprintf("%s declares an invalid JSON schema: %v", api.ID, err),
				Document:          api.SourceDocument,
				Line:              api.SourceLine,
			})
		}
	}
	return issues
}

func checkOrphans(in Input) []Issue {
	incoming := make(map[string]bool)
	for _, e := range in.Entities {
		for _, l := range e.Links {
			incoming[l.Target] = true
		}
	}
	level := LevelInfo
	if in.Strict {
		level = LevelError
	}
	var issues []Issue
	for _, e := range sorted(in.Entities) {
		if len(e.Links) > 0 || incoming[e.ID] {
			continue
		}
		issues = append(issues, Issue{
			Category:          CategoryOrphans,
			RuleID:            "orphan",
			Level:             level,
			InvolvedEntityIDs: []string{e.ID},
			Message:           fmt.Sprintf("%s %s has no incoming or outgoing links", strings.ReplaceAll(string(e.Kind), "_", " "), e.ID),
			Document:          e.SourceDocument,
			Line:              e.SourceLine,
		})
	}
	return issues
}

func sorted(entities []artifact.SpecEntity) []artifact.SpecEntity {
	out := append([]artifact.SpecEntity(nil), entities...)
	artifact.SortEntities(out)
	return out
}
