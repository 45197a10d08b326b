package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/felixgeelhaar/specsync/pkg/domain/audit"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/domain/reconcile"
)

type SyncService struct {
	loader   *CorpusLoader
	store    DocumentStore
	detector *drift.Detector
	planner  *reconcile.Planner
	audit    audit.Store
	actor    string
	logger   *slog.Logger
	now      func() time.Time
}

// NewSyncService creates the service. auditStore may be nil to disable the audit log.
func NewSyncService(loader *CorpusLoader, store DocumentStore, detector *drift.Detector, planner *reconcile.Planner, auditStore audit.Store, logger *slog.Logger) *SyncService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncService{
		loader:   loader,
		store:    store,
		detector: detector,
		planner:  planner,
		audit:    auditStore,
		actor:    "specsync",
		logger:   logger,
		now:      time.Now,
	}
}

// Sync plans the edits that reconcile the specs with the code and, unless
// dryRun is set, applies them. Every change is applied on its own; one
// failure never blocks the others.
func (s *SyncService) Sync(ctx context.Context, dryRun bool, scope string) (*SyncReport, error) {
	sc, err := reconcile.ParseScope(scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}

	corpus, err := s.loader.Load(ctx, true)
	if err != nil {
		return nil, err
	}
	findings := s.detector.Detect(corpus.Entities, corpus.Scan.Facts, sc.DriftScope())
	plan := s.planner.Plan(reconcile.Input{
		Findings: findings,
		Entities: corpus.Entities,
		Facts:    corpus.Scan.Facts,
		Scope:    sc,
	})

	report := &SyncReport{
		Timestamp:        s.now().UTC(),
		DryRun:           dryRun,
		Scope:            sc,
		ChangesProposed:  plan.Changes,
		ChangesApplied:   []reconcile.Change{},
		ChangesUnchanged: []reconcile.Change{},
		Errors:           []SyncError{},
		Unresolved:       plan.Unresolved,
		Skipped:          corpus.Skipped,
	}
	if dryRun || len(plan.Changes) == 0 {
		return report, nil
	}

	status := make(map[string]DocumentStatus, len(corpus.Documents))
	for _, d := range corpus.Documents {
		status[d.Name] = d
	}

	byDoc := make(map[string][]reconcile.Change)
	for _, c := range plan.Changes {
		byDoc[c.TargetDocument] = append(byDoc[c.TargetDocument], c)
	}
	docs := make([]string, 0, len(byDoc))
	for d := range byDoc {
		docs = append(docs, d)
	}
	sort.Strings(docs)

	for _, doc := range docs {
		outcomes, err := s.applyDocument(ctx, doc, status[doc], corpus.Contents[doc], byDoc[doc])
		if err != nil {
			return nil, err
		}
		for _, o := range outcomes {
			switch o.State() {
			case reconcile.StateApplied:
				report.ChangesApplied = append(report.ChangesApplied, o.Change)
			case reconcile.StateUnchanged:
				report.ChangesUnchanged = append(report.ChangesUnchanged, o.Change)
			default:
				report.Errors = append(report.Errors, SyncError{Change: o.Change, Error: o.Err.Error()})
			}
			s.record(o)
		}
	}

	s.logger.Info("sync finished",
		"proposed", len(report.ChangesProposed),
		"applied", len(report.ChangesApplied),
		"unchanged", len(report.ChangesUnchanged),
		"errors", len(report.Errors))
	return report, nil
}

func (s *SyncService) applyDocument(ctx context.Context, doc string, st DocumentStatus, content string, changes []reconcile.Change) ([]*reconcile.Outcome, error) {
	if st.Status == DocumentUnreadable {
		outcomes := make([]*reconcile.Outcome, 0, len(changes))
		for _, c := range changes {
			o, err := reconcile.NewOutcome(c)
			if err != nil {
				return nil, err
			}
			o.Fail(&reconcile.ApplyError{ChangeID: c.ID, Document: doc, Reason: "document could not be read", Err: errors.New(st.Error)})
			outcomes = append(outcomes, o)
		}
		return outcomes, nil
	}

	updated, outcomes, err := reconcile.ApplyDocument(content, changes)
	if err != nil {
		return nil, err
	}
	if updated == content {
		return outcomes, nil
	}
	if err := s.store.WriteDocument(ctx, doc, updated); err != nil {
		s.logger.Error("failed to write spec document", "document", doc, "error", err)
		for _, o := range outcomes {
			if o.State() == reconcile.StateApplied {
				o.Fail(&reconcile.ApplyError{ChangeID: o.Change.ID, Document: doc, Reason: "write failed", Err: err})
			}
		}
	}
	return outcomes, nil
}

func (s *SyncService) record(o *reconcile.Outcome) {
	if s.audit == nil {
		return
	}
	eventType := audit.EventTypeChangeApplied
	meta := map[string]any{"state": o.State()}
	switch o.State() {
	case reconcile.StateApplied:
	case reconcile.StateFailed:
		eventType = audit.EventTypeChangeFailed
		meta["error"] = o.Err.Error()
	default:
		return
	}
	err := s.audit.Append(&audit.Event{
		Type:      eventType,
		Actor:     s.actor,
		ChangeID:  o.Change.ID,
		Document:  o.Change.TargetDocument,
		Operation: string(o.Change.Operation),
		EntityID:  o.Change.EntityID,
		Metadata:  meta,
	})
	if err != nil {
		s.logger.Warn("failed to record sync audit event", "change", o.Change.ID, "error", err)
	}
}
