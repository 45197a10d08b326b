package application

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/coverage"
)

type CoverageService struct {
	trace            *TraceabilityService
	defaultThreshold float64
	now              func() time.Time
}

func NewCoverageService(trace *TraceabilityService, defaultThreshold float64) *CoverageService {
	return &CoverageService{trace: trace, defaultThreshold: defaultThreshold, now: time.Now}
}

// Check computes coverage and compares it with threshold, or with the
// configured default when threshold is nil.
func (s *CoverageService) Check(ctx context.Context, threshold *float64) (*CoverageReport, error) {
	t := s.defaultThreshold
	if threshold != nil {
		t = *threshold
	}
	if err := coverage.ValidateThreshold(t); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidThreshold, err)
	}

	m, skipped, err := s.trace.Matrix(ctx)
	if err != nil {
		return nil, err
	}
	metrics, err := coverage.Calculate(m, t)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidThreshold, err)
	}
	return &CoverageReport{Timestamp: s.now().UTC(), Metrics: metrics, Skipped: skipped}, nil
}
