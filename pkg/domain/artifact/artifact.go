// Package artifact defines the structured facts that specsync extracts from
// specification documents, source code and tests.
package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// EntityKind classifies a specification entity.
type EntityKind string

const (
	KindRequirement   EntityKind = "requirement"
	KindDesignElement EntityKind = "design_element"
	KindAPIContract   EntityKind = "api_contract"
	KindTask          EntityKind = "task"
)

// AllEntityKinds returns the entity kinds in document order.
func AllEntityKinds() []EntityKind {
	return []EntityKind{KindRequirement, KindDesignElement, KindAPIContract, KindTask}
}

// IsValid checks if the entity kind is known.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindRequirement, KindDesignElement, KindAPIContract, KindTask:
		return true
	default:
		return false
	}
}

// FactKind classifies a fact extracted from source code.
type FactKind string

const (
	FactComponent   FactKind = "component"
	FactAPIEndpoint FactKind = "api_endpoint"
	FactDataModel   FactKind = "data_model"
)

// IsValid checks if the fact kind is known.
func (k FactKind) IsValid() bool {
	switch k {
	case FactComponent, FactAPIEndpoint, FactDataModel:
		return true
	default:
		return false
	}
}

// Relation names the meaning of a link between two artifacts.
type Relation string

const (
	RelationSatisfies  Relation = "satisfies"
	RelationImplements Relation = "implements"
	RelationVerifies   Relation = "verifies"
	RelationReferences Relation = "references"
)

// Structural reports whether the relation participates in the traceability DAG.
func (r Relation) Structural() bool {
	return r == RelationSatisfies || r == RelationImplements
}

// Link is a directed reference from one entity to another.
type Link struct {
	Target   string   `json:"target"`
	Relation Relation `json:"relation"`
}

// SpecEntity is a uniquely identifiable item declared in a specification document.
type SpecEntity struct {
	ID             string            `json:"id"`
	Kind           EntityKind        `json:"kind"`
	SourceDocument string            `json:"source_document"`
	SourceLine     int               `json:"source_line"`
	Title          string            `json:"title"`
	Attributes     map[string]string `json:"attributes,omitempty"`
	Links          []Link            `json:"links,omitempty"`

	// RawLines maps an attribute name to the exact source line it was read from.
	RawLines map[string]string `json:"-"`
	// BlockText is the entity's full block as it appears in the document.
	BlockText string `json:"-"`
}

// Attr returns an attribute value or the empty string.
func (e SpecEntity) Attr(name string) string {
	if e.Attributes == nil {
		return ""
	}
	return e.Attributes[name]
}

// LinksTo reports whether the entity links to target with a structural relation.
func (e SpecEntity) LinksTo(target string) bool {
	for _, l := range e.Links {
		if l.Target == target && l.Relation.Structural() {
			return true
		}
	}
	return false
}

// Validate checks the invariants every entity must hold.
func (e SpecEntity) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("%w: entity id cannot be empty", ErrInvalidArtifact)
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("%w: unknown entity kind %q", ErrInvalidArtifact, e.Kind)
	}
	if e.SourceDocument == "" {
		return fmt.Errorf("%w: entity %s has no source document", ErrInvalidArtifact, e.ID)
	}
	return nil
}

// Location points at a position in a source file.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	if l.Line <= 0 {
		return l.Path
	}
	return fmt.Sprintf("%s:%d", l.Path, l.Line)
}

// CodeFact is a structural fact extracted from source code.
type CodeFact struct {
	ID         string            `json:"id"`
	Kind       FactKind          `json:"kind"`
	Name       string            `json:"name"`
	Language   string            `json:"language"`
	Location   Location          `json:"location"`
	Signature  string            `json:"signature,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	TraceIDs   []string          `json:"trace_ids,omitempty"`
}

// Attr returns an attribute value or the empty string.
func (f CodeFact) Attr(name string) string {
	if f.Attributes == nil {
		return ""
	}
	return f.Attributes[name]
}

// Validate checks the invariants every code fact must hold.
func (f CodeFact) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: code fact id cannot be empty", ErrInvalidArtifact)
	}
	if !f.Kind.IsValid() {
		return fmt.Errorf("%w: unknown fact kind %q", ErrInvalidArtifact, f.Kind)
	}
	if f.Location.Path == "" {
		return fmt.Errorf("%w: code fact %s has no location", ErrInvalidArtifact, f.ID)
	}
	return nil
}

// TestFact describes a test case and the artifacts it exercises.
type TestFact struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Location Location `json:"location"`
	Targets  []string `json:"targets"`
}

// SortEntities orders entities by id, then document and line.
func SortEntities(entities []SpecEntity) {
	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].ID != entities[j].ID {
			return entities[i].ID < entities[j].ID
		}
		if entities[i].SourceDocument != entities[j].SourceDocument {
			return entities[i].SourceDocument < entities[j].SourceDocument
		}
		return entities[i].SourceLine < entities[j].SourceLine
	})
}

// SortFacts orders code facts by id.
func SortFacts(facts []CodeFact) {
	sort.SliceStable(facts, func(i, j int) bool { return facts[i].ID < facts[j].ID })
}

// FilterKind returns the entities of the given kind, preserving order.
func FilterKind(entities []SpecEntity, kind EntityKind) []SpecEntity {
	out := make([]SpecEntity, 0)
	for _, e := range entities {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Index maps entity ids to entities. Later duplicates do not replace earlier ones.
func Index(entities []SpecEntity) map[string]SpecEntity {
	idx := make(map[string]SpecEntity, len(entities))
	for _, e := range entities {
		if _, ok := idx[e.ID]; !ok {
			idx[e.ID] = e
		}
	}
	return idx
}
