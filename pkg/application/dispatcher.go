package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
)

// Operation names, as exposed to MCP clients and the CLI.
const (
	OpDetectSpecDrift            = "detect_spec_drift"
	OpValidateSpecConsistency    = "validate_spec_consistency"
	OpSyncSpecsWithCode          = "sync_specs_with_code"
	OpGenerateTraceabilityMatrix = "generate_traceability_matrix"
	OpCheckSpecCoverage          = "check_spec_coverage"
)

// Operations returns every operation name in a stable order.
func Operations() []string {
	return []string{
		OpDetectSpecDrift,
		OpValidateSpecConsistency,
		OpSyncSpecsWithCode,
		OpGenerateTraceabilityMatrix,
		OpCheckSpecCoverage,
	}
}

// Args are the union of every operation's arguments. Each operation reads
// only its own.
type Args struct {
	Scope     string   `json:"scope,omitempty"`
	Strict    bool     `json:"strict,omitempty"`
	DryRun    bool     `json:"dry_run,omitempty"`
	Format    string   `json:"format,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Dispatcher routes operation names to the services.
type Dispatcher struct {
	drift       *DriftService
	consistency *ConsistencyService
	sync        *SyncService
	trace       *TraceabilityService
	coverage    *CoverageService
	timeout     time.Duration
}

// NewDispatcher creates a dispatcher. A zero timeout disables the per-call limit.
func NewDispatcher(d *DriftService, c *ConsistencyService, s *SyncService, t *TraceabilityService, cov *CoverageService, callTimeout time.Duration) *Dispatcher {
	return &Dispatcher{drift: d, consistency: c, sync: s, trace: t, coverage: cov, timeout: callTimeout}
}

// Invoke runs the named operation and returns its report.
func (d *Dispatcher) Invoke(ctx context.Context, op string, args Args) (any, error) {
	run, err := d.route(op, args)
	if err != nil {
		return nil, err
	}
	if d.timeout <= 0 {
		return run(ctx)
	}
	t := timeout.New[any](timeout.Config{DefaultTimeout: d.timeout})
	return t.Execute(ctx, d.timeout, run)
}

// InvokeJSON decodes raw JSON arguments and runs the named operation. Empty
// input means no arguments.
func (d *Dispatcher) InvokeJSON(ctx context.Context, op string, raw []byte) (any, error) {
	var args Args
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
		}
	}
	return d.Invoke(ctx, op, args)
}

func (d *Dispatcher) route(op string, args Args) (func(context.Context) (any, error), error) {
	switch op {
	case OpDetectSpecDrift:
		return func(ctx context.Context) (any, error) { return d.drift.Detect(ctx, args.Scope) }, nil
	case OpValidateSpecConsistency:
		return func(ctx context.Context) (any, error) { return d.consistency.Validate(ctx, args.Strict) }, nil
	case OpSyncSpecsWithCode:
		return func(ctx context.Context) (any, error) { return d.sync.Sync(ctx, args.DryRun, args.Scope) }, nil
	case OpGenerateTraceabilityMatrix:
		return func(ctx context.Context) (any, error) { return d.trace.Generate(ctx, args.Format) }, nil
	case OpCheckSpecCoverage:
		return func(ctx context.Context) (any, error) { return d.coverage.Check(ctx, args.Threshold) }, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
}
