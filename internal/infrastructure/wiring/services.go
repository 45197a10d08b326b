package wiring

import (
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/specsync/internal/infrastructure/config"
	"github.com/felixgeelhaar/specsync/pkg/application"
	"github.com/felixgeelhaar/specsync/pkg/domain/artifact"
	"github.com/felixgeelhaar/specsync/pkg/domain/audit"
	"github.com/felixgeelhaar/specsync/pkg/domain/drift"
	"github.com/felixgeelhaar/specsync/pkg/domain/reconcile"
	"github.com/felixgeelhaar/specsync/pkg/domain/spec"
	"github.com/felixgeelhaar/specsync/pkg/infrastructure/codescan"
	"github.com/felixgeelhaar/specsync/pkg/infrastructure/render"
)

// AppServices exposes the application layer services wired together with a workspace.
type AppServices struct {
	Workspace    *Workspace
	Drift        *application.DriftService
	Consistency  *application.ConsistencyService
	Sync         *application.SyncService
	Traceability *application.TraceabilityService
	Coverage     *application.CoverageService
	Dispatcher   *application.Dispatcher
	Logger       *slog.Logger
}

// BuildAppServices constructs the services for a resolved configuration.
func BuildAppServices(cfg *config.Config, logger *slog.Logger) (*AppServices, error) {
	if logger == nil {
		logger = slog.Default()
	}
	workspace, err := NewWorkspace(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build workspace: %w", err)
	}

	byKind := cfg.Documents.ByKind()
	docs := make([]application.DocumentSpec, 0, len(byKind))
	for _, kind := range artifact.AllEntityKinds() {
		docs = append(docs, application.DocumentSpec{Name: byKind[kind], Kind: kind})
	}

	loader := application.NewCorpusLoader(workspace.Repo, workspace.Scanner, docs, logger)
	detector := drift.NewDetector(codescan.Convention{},
		drift.WithPolicy(cfg.Drift),
		drift.WithLinkAttributes(spec.IsLinkAttribute),
	)
	planner := reconcile.NewPlanner(byKind, cfg.Sync)

	// a nil *FileEventStore must not reach the service as a non-nil interface
	var events audit.Store
	if workspace.Audit != nil {
		events = workspace.Audit
	}

	driftSvc := application.NewDriftService(loader, detector, logger)
	consistencySvc := application.NewConsistencyService(loader, logger)
	syncSvc := application.NewSyncService(loader, workspace.Repo, detector, planner, events, logger)
	traceSvc := application.NewTraceabilityService(loader, detector, render.NewMatrixRenderer(), logger)
	coverageSvc := application.NewCoverageService(traceSvc, cfg.Coverage.Threshold)

	return &AppServices{
		Workspace:    workspace,
		Drift:        driftSvc,
		Consistency:  consistencySvc,
		Sync:         syncSvc,
		Traceability: traceSvc,
		Coverage:     coverageSvc,
		Dispatcher:   application.NewDispatcher(driftSvc, consistencySvc, syncSvc, traceSvc, coverageSvc, cfg.Timeout),
		Logger:       logger,
	}, nil
}

// Load resolves the configuration for root and builds the services.
func Load(root string, logger *slog.Logger) (*AppServices, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	return BuildAppServices(cfg, logger)
}
