package wiring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/specsync/internal/infrastructure/config"
)

func TestNewWorkspace(t *testing.T) {
	root := t.TempDir()
	ws, err := NewWorkspace(config.Default(root), nil)
	if err != nil {
		t.Fatalf("NewWorkspace failed: %v", err)
	}
	if ws.Repo == nil || ws.Scanner == nil {
		t.Fatal("expected repository and scanner")
	}
	if ws.Audit != nil {
		t.Fatal("audit log must be off by default")
	}
	if got, want := ws.Repo.SpecDir(), filepath.Join(root, "specs"); got != want {
		t.Errorf("spec dir = %q, want %q", got, want)
	}
}

func TestNewWorkspace_Audit(t *testing.T) {
	cfg := config.Default(t.TempDir())
	cfg.Audit.Enabled = true
	ws, err := NewWorkspace(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ws.Audit == nil {
		t.Fatal("expected an audit store")
	}
}

func TestNewWorkspace_NilConfig(t *testing.T) {
	if _, err := NewWorkspace(nil, nil); err == nil {
		t.Fatal("expected an error for a nil config")
	}
}

func TestBuildAppServices(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "specs"), 0o700); err != nil {
		t.Fatal(err)
	}
	doc := "# Requirements\n\n## REQ-001: Login\n- **Priority**: must\n"
	if err := os.WriteFile(filepath.Join(root, "specs", "requirements.md"), []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	services, err := BuildAppServices(config.Default(root), nil)
	if err != nil {
		t.Fatalf("build services failed: %v", err)
	}
	if services.Drift == nil || services.Consistency == nil || services.Sync == nil ||
		services.Traceability == nil || services.Coverage == nil || services.Dispatcher == nil {
		t.Fatalf("expected non-nil services, got %+v", services)
	}

	report, err := services.Traceability.Generate(t.Context(), "csv")
	if err != nil {
		t.Fatal(err)
	}
	if report.Rendered == "" || len(report.Matrix.Rows) != 1 {
		t.Errorf("renderer not wired: %+v", report)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(config.EnvProjectRoot, "")
	root := t.TempDir()
	services, err := Load(root, nil)
	if err != nil {
		t.Fatal(err)
	}
	if services.Workspace.Config.ProjectRoot != root {
		t.Errorf("root = %q", services.Workspace.Config.ProjectRoot)
	}
}
