package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestMain_Execute(t *testing.T) {
	// Help
	os.Args = []string{"specsync", "--help"}
	main()
}

func TestHappyPath(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping end-to-end test in short mode")
	}

	bin := filepath.Join(t.TempDir(), "specsync")
	build := exec.Command("go", "build", "-o", bin, ".")
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("build specsync: %v\n%s", err, out)
	}

	project := t.TempDir()
	run := func(args ...string) (string, int) {
		cmd := exec.Command(bin, args...)
		cmd.Dir = project
		cmd.Env = append(os.Environ(), "PROJECT_ROOT=", "SPEC_DIR=", "SPECSYNC_AUDIT=true")
		out, err := cmd.CombinedOutput()
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode()
		}
		if err != nil {
			t.Fatalf("specsync %v: %v", args, err)
		}
		return string(out), 0
	}
	write := func(rel, content string) {
		path := filepath.Join(project, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	// 1. Init
	if out, code := run("init"); code != 0 || !strings.Contains(out, "config.yaml") {
		t.Fatalf("init failed (%d): %s", code, out)
	}

	// 2. Specs and code that disagree
	write("specs/requirements.md", "# Requirements\n\n## REQ-001: Manage users\n- **Priority**: must\n")
	write("specs/design.md", "# Design\n\n## DES-001: UserService\n\n- **Component**: UserService\n- **Location**: internal/users/service.go\n- **Satisfies**: REQ-001\n")
	write("internal/users/service.go", "package users\n\n// UserService manages user accounts.\ntype UserService struct{}\n\nfunc (s *UserService) Register(name string) error { return nil }\n")
	write("internal/billing/invoice.go", "package billing\n\n// Invoice is a billed amount.\ntype Invoice struct {\n\tID string `json:\"id\"`\n}\n")

	// 3. Drift is reported with the findings exit code
	out, code := run("drift", "--scope", "design")
	if code != 2 || !strings.Contains(out, "Invoice") {
		t.Fatalf("expected drift for Invoice (exit %d):\n%s", code, out)
	}

	// 4. Sync documents the new component
	if out, code := run("sync", "--scope", "design"); code != 0 {
		t.Fatalf("sync failed (%d):\n%s", code, out)
	}
	design, err := os.ReadFile(filepath.Join(project, "specs", "design.md"))
	if err != nil || !strings.Contains(string(design), "Invoice") {
		t.Fatalf("design.md not updated: %v\n%s", err, design)
	}

	// 5. Drift is gone and the audit log is intact
	if out, code := run("drift", "--scope", "design"); code != 0 {
		t.Fatalf("drift after sync (%d):\n%s", code, out)
	}
	if out, code := run("audit", "verify"); code != 0 || !strings.Contains(out, "intact") {
		t.Fatalf("audit verify failed (%d):\n%s", code, out)
	}
}
