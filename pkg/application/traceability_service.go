package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/domain/trace"
)

type TraceabilityService struct {
	loader   *CorpusLoader
	detector *drift.Detector
	builder  *trace.Builder
	renderer MatrixRenderer
	logger   *slog.Logger
	now      func() time.Time
}

// NewTraceabilityService creates the service. A nil renderer leaves reports unrendered.
func NewTraceabilityService(loader *CorpusLoader, detector *drift.Detector, renderer MatrixRenderer, logger *slog.Logger) *TraceabilityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TraceabilityService{
		loader:   loader,
		detector: detector,
		builder:  trace.NewBuilder(),
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate builds the matrix and renders it in the requested format.
func (s *TraceabilityService) Generate(ctx context.Context, format string) (*TraceabilityReport, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	m, skipped, err := s.Matrix(ctx)
	if err != nil {
		return nil, err
	}

	report := &TraceabilityReport{Timestamp: s.now().UTC(), Format: f, Matrix: m, Skipped: skipped}
	if s.renderer != nil {
		out, err := s.renderer.RenderMatrix(f, m)
		if err != nil {
			return nil, fmt.Errorf("render matrix: %w", err)
		}
		report.Rendered = out
	}
	return report, nil
}

// Matrix loads a fresh corpus and folds it into a traceability matrix.
func (s *TraceabilityService) Matrix(ctx context.Context) (trace.Matrix, []Skipped, error) {
	corpus, err := s.loader.Load(ctx, true)
	if err != nil {
		return trace.Matrix{}, nil, err
	}
	findings := s.detector.Detect(corpus.Entities, corpus.Scan.Facts, drift.ScopeAll)
	m := s.builder.Build(trace.Input{
		Entities: corpus.Entities,
		Facts:    corpus.Scan.Facts,
		Tests:    corpus.Scan.Tests,
		Findings: findings,
	})
	for _, issue := range m.Rejected {
		s.logger.Warn("rejected trace link", "message", issue.Message)
	}
	return m, corpus.Skipped, nil
}
