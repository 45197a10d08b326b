// Package consistency checks the referential and structural rules that hold
// across the specification corpus. It never looks at code.
package consistency

// Level grades an issue. Informational issues never fail validation.
type Level string

const (
	LevelError Level = "error"
	LevelInfo  Level = "info"
)

// Rule categories in evaluation order.
const (
	CategoryParse          = "parse"
	CategoryUniqueness     = "uniqueness"
	CategoryReferences     = "references"
	CategoryCycles         = "cycles"
	CategoryAPI            = "api"
	CategoryContradictions = "contradictions"
	CategorySchema         = "schema"
	CategoryOrphans        = "orphans"
)

// Issue is a single rule violation.
type Issue struct {
	Category          string   `json:"category"`
	RuleID            string   `json:"rule_id"`
	Level             Level    `json:"level"`
	InvolvedEntityIDs []string `json:"involved_entity_ids"`
	Message           string   `json:"message"`
	Document          string   `json:"document,omitempty"`
	Line              int      `json:"line,omitempty"`
}

// Status is the outcome of one rule category.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusWarning Status = "warning"
)

// CategoryResult groups the issues raised by one rule.
type CategoryResult struct {
	Category string  `json:"category"`
	RuleID   string  `json:"rule_id"`
	Status   Status  `json:"status"`
	Issues   []Issue `json:"issues"`
}

// Result is the merged outcome of all rules.
type Result struct {
	Categories []CategoryResult `json:"validation_results"`
}

// Issues flattens the issues of every category in rule order.
func (r Result) Issues() []Issue {
	out := make([]Issue, 0)
	for _, c := range r.Categories {
		out = append(out, c.Issues...)
	}
	return out
}

// Passed reports whether no error-level issue was raised.
func (r Result) Passed() bool {
	for _, c := range r.Categories {
		if c.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Count returns the number of issues at the given level.
func (r Result) Count(level Level) int {
	n := 0
	for _, c := range r.Categories {
		for _, i := range c.Issues {
			if i.Level == level {
				n++
			}
		}
	}
	return n
}

func statusOf(issues []Issue) Status {
	status := StatusPassed
	for _, i := range issues {
		if i.Level == LevelError {
			return StatusFailed
		}
		status = StatusWarning
	}
	return status
}
