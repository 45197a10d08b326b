// Package reconcile plans and applies the edits that bring specification
// documents back in line with the code.
package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
)

// Operation is the kind of text edit a change performs.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Change is one proposed edit to a specification document.
type Change struct {
	ID                   string    `json:"id"`
	TargetDocument       string    `json:"target_document"`
	Operation            Operation `json:"operation"`
	EntityID             string    `json:"entity_id,omitempty"`
	// Anchor is the line that opens the entity's block. Updates only touch
	// lines inside that block.
	Anchor               string    `json:"anchor,omitempty"`
	BeforeText           string    `json:"before_text,omitempty"`
	AfterText            string    `json:"after_text"`
	OriginatingFindingID string    `json:"originating_finding_id"`
	Preview              string    `json:"preview,omitempty"`
}

// Unresolved is a finding the planner will not fix automatically.
type Unresolved struct {
	FindingID    string `json:"finding_id"`
	SpecEntityID string `json:"spec_entity_id,omitempty"`
	CodeFactID   string `json:"code_fact_id,omitempty"`
	Reason       string `json:"reason"`
}

// Scope limits synchronization to a subset of findings.
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeRequirements Scope = "requirements"
	ScopeDesign       Scope = "design"
	ScopeAPI          Scope = "api"
	ScopeModels       Scope = "models"
	ScopeTasks        Scope = "tasks"
)

// AllScopes returns the valid sync scopes.
func AllScopes() []Scope {
	return []Scope{ScopeAll, ScopeRequirements, ScopeDesign, ScopeAPI, ScopeModels, ScopeTasks}
}

// ParseScope parses a scope name. An empty name means all.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopeAll, nil
	}
	for _, sc := range AllScopes() {
		if string(sc) == strings.ToLower(s) {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
}

// DriftScope is the drift detection scope that feeds this sync scope.
func (s Scope) DriftScope() drift.Scope {
	switch s {
	case ScopeRequirements:
		return drift.ScopeRequirements
	case ScopeDesign, ScopeModels:
		return drift.ScopeDesign
	case ScopeAPI:
		return drift.ScopeAPI
	case ScopeTasks:
		return drift.ScopeTasks
	default:
		return drift.ScopeAll
	}
}

// Includes reports whether a finding falls inside the scope.
func (s Scope) Includes(f drift.Finding) bool {
	kind := f.Kind
	switch s {
	case ScopeAll, "":
		return true
	case ScopeRequirements:
		return kind == string(artifact.KindRequirement)
	case ScopeDesign:
		return kind == string(artifact.KindDesignElement) ||
			kind == string(artifact.FactComponent) || kind == string(artifact.FactDataModel)
	case ScopeModels:
		return kind == string(artifact.KindDesignElement) || kind == string(artifact.FactDataModel)
	case ScopeAPI:
		return kind == string(artifact.KindAPIContract) || kind == string(artifact.FactAPIEndpoint)
	case ScopeTasks:
		return kind == string(artifact.KindTask)
	}
	return false
}

// SortChanges orders changes by document, operation and id.
func SortChanges(changes []Change) {
	sort.SliceStable(changes, func(i, j int) bool {
		a, b := changes[i], changes[j]
		if a.TargetDocument != b.TargetDocument {
			return a.TargetDocument < b.TargetDocument
		}
		if a.Operation != b.Operation {
			return a.Operation < b.Operation
		}
		return a.ID < b.ID
	})
}
