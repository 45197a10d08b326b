package drift

import (
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
)

// Status classifies how a spec entity and a code fact relate.
type Status string

const (
	StatusMatched       Status = "matched"
	StatusMissingInCode Status = "missing_in_code"
	StatusMissingInSpec Status = "missing_in_spec"
	StatusChanged       Status = "changed"
)

type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityMajor:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	return sev, sev.Rank() > 0
}

// Scope limits drift detection to a subset of the corpus.
type Scope string

const (
	ScopeAll          Scope = "all"
	ScopeRequirements Scope = "requirements"
	ScopeDesign       Scope = "design"
	ScopeAPI          Scope = "api"
	ScopeTasks        Scope = "tasks"
)

// AllScopes returns the valid drift scopes.
func AllScopes() []Scope {
	return []Scope{ScopeAll, ScopeRequirements, ScopeDesign, ScopeAPI, ScopeTasks}
}

// ParseScope parses a scope name. An empty name means all.
func ParseScope(s string) (Scope, error) {
	if s == "" {
		return ScopeAll, nil
	}
	for _, sc := range AllScopes() {
		if string(sc) == s {
			return sc, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScope, s)
}

// SpecKinds returns the entity kinds reported for the scope.
func (s Scope) SpecKinds() []artifact.EntityKind {
	switch s {
	case ScopeRequirements:
		return []artifact.EntityKind{artifact.KindRequirement}
	case ScopeDesign:
		return []artifact.EntityKind{artifact.KindDesignElement}
	case ScopeAPI:
		return []artifact.EntityKind{artifact.KindAPIContract}
	case ScopeTasks:
		return []artifact.EntityKind{artifact.KindTask}
	default:
		return artifact.AllEntityKinds()
	}
}

// UndocumentedKinds returns the code fact kinds reported as missing_in_spec.
func (s Scope) UndocumentedKinds() []artifact.FactKind {
	switch s {
	case ScopeAll:
		return []artifact.FactKind{artifact.FactComponent, artifact.FactDataModel, artifact.FactAPIEndpoint}
	case ScopeDesign:
		return []artifact.FactKind{artifact.FactComponent, artifact.FactDataModel}
	case ScopeAPI:
		return []artifact.FactKind{artifact.FactAPIEndpoint}
	default:
		return nil
	}
}

// Difference is one attribute that disagrees between spec and code.
type Difference struct {
	Attribute string   `json:"attribute"`
	Spec      string   `json:"spec"`
	Code      string   `json:"code"`
	Severity  Severity `json:"severity"`
}

// Finding is the drift verdict for one pairing.
type Finding struct {
	ID           string       `json:"id"`
	SpecEntityID string       `json:"spec_entity_id,omitempty"`
	CodeFactID   string       `json:"code_fact_id,omitempty"`
	Kind         string       `json:"kind"`
	Status       Status       `json:"status"`
	Severity     Severity     `json:"severity"`
	Description  string       `json:"description"`
	Differences  []Difference `json:"differences,omitempty"`
	Document     string       `json:"document,omitempty"`
	Location     string       `json:"location,omitempty"`
	Hint         string       `json:"hint,omitempty"`
	DetectedAt   time.Time    `json:"detected_at"`
}

// SortKey is the id a finding is ordered by: its spec id, else its fact id.
func (f Finding) SortKey() string {
	if f.SpecEntityID != "" {
		return f.SpecEntityID
	}
	return f.CodeFactID
}

// IsDrift reports whether the finding is anything other than a clean match.
func (f Finding) IsDrift() bool {
	return f.Status != StatusMatched
}

// Policy tunes how findings are graded.
type Policy struct {
	// UndocumentedSeverity grades code facts that no spec mentions.
	UndocumentedSeverity Severity `json:"undocumented_severity" yaml:"undocumented_severity"`
	// CriticalPriorities lists requirement priorities whose absence in code is critical.
	CriticalPriorities []string `json:"critical_priorities" yaml:"critical_priorities"`
}

// DefaultPolicy returns the default grading policy.
func DefaultPolicy() Policy {
	return Policy{
		UndocumentedSeverity: SeverityMinor,
		CriticalPriorities:   []string{"must", "critical", "high"},
	}
}
