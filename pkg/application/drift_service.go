package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/consistency"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/infrastructure/codescan"
)

type DriftService struct {
	loader   *CorpusLoader
	detector *drift.Detector
	logger   *slog.Logger
	now      func() time.Time
}

func NewDriftService(loader *CorpusLoader, detector *drift.Detector, logger *slog.Logger) *DriftService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DriftService{loader: loader, detector: detector, logger: logger, now: time.Now}
}

// Detect compares the spec documents with the code within scope.
func (s *DriftService) Detect(ctx context.Context, scope string) (*DriftReport, error) {
	sc, err := drift.ParseScope(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}

	corpus, err := s.loader.Load(ctx, true)
	if err != nil {
		return nil, err
	}
	findings := s.detector.Detect(corpus.Entities, corpus.Scan.Facts, sc)

	report := &DriftReport{
		Timestamp:     s.now().UTC(),
		Scope:         sc,
		DriftDetected: []drift.Finding{},
		Matched:       []drift.Finding{},
		Issues:        consistency.ParseIssues(corpus.ParseErrors),
		CodeErrors:    corpus.Scan.Errors,
		Documents:     corpus.Documents,
		Skipped:       corpus.Skipped,
		Summary: DriftSummary{
			TotalFilesChecked: corpus.DocumentsChecked(),
			SeverityBreakdown: map[drift.Severity]int{
				drift.SeverityCritical: 0,
				drift.SeverityMajor:    0,
				drift.SeverityMinor:    0,
			},
			CodeFilesScanned: corpus.Scan.FilesScanned,
		},
	}
	if report.CodeErrors == nil {
		report.CodeErrors = []*codescan.CodeParseError{}
	}

	// files_with_drift counts spec documents only; code files are counted apart.
	docs := make(map[string]bool)
	code := make(map[string]bool)
	for _, f := range findings {
		if !f.IsDrift() {
			report.Matched = append(report.Matched, f)
			continue
		}
		report.DriftDetected = append(report.DriftDetected, f)
		report.Summary.SeverityBreakdown[f.Severity]++
		switch {
		case f.Document == "":
		case f.SpecEntityID != "":
			docs[f.Document] = true
		default:
			code[f.Document] = true
		}
	}
	report.Summary.FilesWithDrift = len(docs)
	report.Summary.CodeFilesWithDrift = len(code)

	s.logger.Debug("drift detection finished",
		"scope", sc,
		"drift", len(report.DriftDetected),
		"matched", len(report.Matched),
		"documents", report.Summary.TotalFilesChecked)
	return report, nil
}
