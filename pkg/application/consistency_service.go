package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/consistency"
)

type ConsistencyService struct {
	loader    *CorpusLoader
	validator *consistency.Validator
	logger    *slog.Logger
	now       func() time.Time
}

func NewConsistencyService(loader *CorpusLoader, logger *slog.Logger) *ConsistencyService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsistencyService{loader: loader, validator: consistency.NewValidator(), logger: logger, now: time.Now}
}

// Validate runs the consistency rules over the spec documents. Code is never read.
func (s *ConsistencyService) Validate(ctx context.Context, strict bool) (*ConsistencyReport, error) {
	corpus, err := s.loader.Load(ctx, false)
	if err != nil {
		return nil, err
	}
	result, err := s.validator.Validate(ctx, consistency.Input{
		Entities:    corpus.Entities,
		ParseErrors: corpus.ParseErrors,
		Strict:      strict,
	})
	if err != nil {
		return nil, err
	}

	status := consistency.StatusPassed
	if !result.Passed() {
		status = consistency.StatusFailed
	}
	report := &ConsistencyReport{
		Timestamp:         s.now().UTC(),
		StrictMode:        strict,
		ValidationResults: result.Categories,
		OverallStatus:     status,
		IssuesFound:       len(result.Issues()),
		Errors:            result.Count(consistency.LevelError),
		Warnings:          result.Count(consistency.LevelInfo),
		Documents:         corpus.Documents,
		Skipped:           corpus.Skipped,
	}
	s.logger.Debug("consistency validation finished", "status", status, "issues", report.IssuesFound, "strict", strict)
	return report, nil
}
