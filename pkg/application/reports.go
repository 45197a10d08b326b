package application

import (
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/consistency"
	"github.com/felixgeelhaar/specsync/pkg/domain/coverage"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/domain/reconcile"
	"github.com/felixgeelhaar/specsync/pkg/domain/trace"
	"github.com/felixgeelhaar/specsync/pkg/infrastructure/codescan"
)

// DriftSummary aggregates a drift run.
type DriftSummary struct {
	TotalFilesChecked  int                    `json:"total_files_checked"`
	FilesWithDrift     int                    `json:"files_with_drift"`
	SeverityBreakdown  map[drift.Severity]int `json:"severity_breakdown"`
	CodeFilesScanned   int                    `json:"code_files_scanned"`
	CodeFilesWithDrift int                    `json:"code_files_with_drift"`
}

// DriftReport is the result of detect_spec_drift.
type DriftReport struct {
	Timestamp     time.Time                  `json:"timestamp"`
	Scope         drift.Scope                `json:"scope"`
	DriftDetected []drift.Finding            `json:"drift_detected"`
	Matched       []drift.Finding            `json:"matched"`
	Summary       DriftSummary               `json:"summary"`
	Issues        []consistency.Issue        `json:"issues"`
	CodeErrors    []*codescan.CodeParseError `json:"code_errors"`
	Documents     []DocumentStatus           `json:"documents"`
	Skipped       []Skipped                  `json:"skipped"`
}

// ConsistencyReport is the result of validate_spec_consistency.
type ConsistencyReport struct {
	Timestamp         time.Time                    `json:"timestamp"`
	StrictMode        bool                         `json:"strict_mode"`
	ValidationResults []consistency.CategoryResult `json:"validation_results"`
	OverallStatus     consistency.Status           `json:"overall_status"`
	IssuesFound       int                          `json:"issues_found"`
	Errors            int                          `json:"errors"`
	Warnings          int                          `json:"warnings"`
	Documents         []DocumentStatus             `json:"documents"`
	Skipped           []Skipped                    `json:"skipped"`
}

// SyncError pairs a change with the reason it failed.
type SyncError struct {
	Change reconcile.Change `json:"change"`
	Error  string           `json:"error"`
}

// SyncReport is the result of sync_specs_with_code.
type SyncReport struct {
	Timestamp        time.Time              `json:"timestamp"`
	DryRun           bool                   `json:"dry_run"`
	Scope            reconcile.Scope        `json:"scope"`
	ChangesProposed  []reconcile.Change     `json:"changes_proposed"`
	ChangesApplied   []reconcile.Change     `json:"changes_applied"`
	ChangesUnchanged []reconcile.Change     `json:"changes_unchanged"`
	Errors           []SyncError            `json:"errors"`
	Unresolved       []reconcile.Unresolved `json:"unresolved"`
	Skipped          []Skipped              `json:"skipped"`
}

// TraceabilityReport is the result of generate_traceability_matrix.
type TraceabilityReport struct {
	Timestamp time.Time    `json:"timestamp"`
	Format    Format       `json:"format"`
	Matrix    trace.Matrix `json:"matrix"`
	// Rendered is the matrix formatted as Format.
	Rendered string    `json:"rendered,omitempty"`
	Skipped  []Skipped `json:"skipped"`
}

// CoverageReport is the result of check_spec_coverage.
type CoverageReport struct {
	Timestamp time.Time `json:"timestamp"`
	coverage.Metrics
	Skipped []Skipped `json:"skipped"`
}
