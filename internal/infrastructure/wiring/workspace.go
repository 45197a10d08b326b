package wiring

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/felixgeelhaar/specsync/internal/infrastructure/config"
	"github.com/felixgeelhaar/specsync/pkg/infrastructure/codescan"
	"github.com/felixgeelhaar/specsync/pkg/storage"
)

// Workspace bundles core infrastructure dependencies.
type Workspace struct {
	Config  *config.Config
	Repo    *storage.FilesystemRepository
	Scanner *codescan.Scanner
	// Audit is nil unless the audit log is enabled.
	Audit *storage.FileEventStore
}

func NewWorkspace(cfg *config.Config, logger *slog.Logger) (*Workspace, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	repo := storage.NewFilesystemRepository(cfg.ProjectRoot, cfg.SpecDir)

	specDir, err := filepath.Rel(cfg.ProjectRoot, repo.SpecDir())
	if err != nil {
		specDir = cfg.SpecDir
	}
	scanner := codescan.NewScanner(cfg.ProjectRoot,
		codescan.WithSpecDir(specDir),
		codescan.WithInclude(cfg.Scan.Include...),
		codescan.WithExclude(cfg.Scan.Exclude...),
		codescan.WithConcurrency(cfg.Scan.Concurrency),
		codescan.WithLogger(logger),
	)

	ws := &Workspace{Config: cfg, Repo: repo, Scanner: scanner}
	if cfg.Audit.Enabled {
		events, err := storage.NewFileEventStore(filepath.Join(cfg.ProjectRoot, storage.StateDir))
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		ws.Audit = events
	}
	return ws, nil
}
