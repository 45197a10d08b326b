package cli

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/specsync/pkg/application"
)

func TestExecute_Help(t *testing.T) {
	root := sampleProject(t)
	out, err := runCLI(t, root, "--help")
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	for _, cmd := range []string{"drift", "validate", "sync", "trace", "coverage", "invoke", "mcp", "audit", "init"} {
		if !strings.Contains(out, cmd) {
			t.Errorf("help does not list %s:\n%s", cmd, out)
		}
	}
}

func TestDriftCommand(t *testing.T) {
	root := sampleProject(t)

	out, err := runCLI(t, root, "drift")
	if ExitCode(err) != ExitFindings {
		t.Fatalf("expected findings exit code, got %v", err)
	}
	if !strings.Contains(out, "Detected 1 drift findings") || !strings.Contains(out, "REQ-002") {
		t.Errorf("unexpected output:\n%s", out)
	}

	out, err = runCLI(t, root, "drift", "--scope", "api", "-o", "json")
	if err != nil {
		t.Fatalf("api scope should be clean: %v", err)
	}
	var report application.DriftReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if report.Scope != "api" || len(report.DriftDetected) != 0 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestDriftCommand_InvalidScope(t *testing.T) {
	root := sampleProject(t)
	_, err := runCLI(t, root, "drift", "--scope", "everything")
	var cliErr *CLIError
	if !errors.As(err, &cliErr) || cliErr.Hint == "" {
		t.Fatalf("expected a CLIError with a hint, got %v", err)
	}
	if !errors.Is(err, application.ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
}

func TestDriftCommand_InvalidOutput(t *testing.T) {
	root := sampleProject(t)
	if _, err := runCLI(t, root, "drift", "-o", "yaml"); err == nil {
		t.Fatal("expected an error for an unsupported output")
	}
}

func TestValidateCommand(t *testing.T) {
	root := sampleProject(t)

	out, err := runCLI(t, root, "validate")
	if err != nil {
		t.Fatalf("validate failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Consistency: passed (default mode") {
		t.Errorf("unexpected output:\n%s", out)
	}

	// REQ-002 has no links, which strict mode rejects
	out, err = runCLI(t, root, "validate", "--strict")
	if ExitCode(err) != ExitFindings {
		t.Fatalf("expected strict validation to fail, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "REQ-002") {
		t.Errorf("orphan not reported:\n%s", out)
	}
}

func TestValidateCommand_StrictFromConfig(t *testing.T) {
	root := sampleProject(t)
	if err := os.MkdirAll(filepath.Join(root, ".specsync"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, ".specsync", "config.yaml"), []byte("consistency:\n  strict: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, root, "validate"); ExitCode(err) != ExitFindings {
		t.Fatalf("configured strict mode ignored: %v", err)
	}
}

func TestSyncCommand(t *testing.T) {
	root := writeProject(t, map[string]string{
		"specs/requirements.md":       requirementsDoc,
		"specs/design.md":             designDoc,
		"specs/api-spec.md":           apiDoc,
		"internal/users/service.go":   serviceGo,
		"internal/billing/invoice.go": invoiceGo,
	})
	design := filepath.Join(root, "specs", "design.md")

	out, err := runCLI(t, root, "sync", "--dry-run", "--scope", "design")
	if err != nil {
		t.Fatalf("dry run failed: %v", err)
	}
	if !strings.Contains(out, "Dry run: 1 changes proposed") {
		t.Errorf("unexpected dry run output:\n%s", out)
	}
	if readFile(t, design) != designDoc {
		t.Fatal("dry run modified design.md")
	}

	out, err = runCLI(t, root, "sync", "--scope", "design")
	if err != nil {
		t.Fatalf("sync failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Applied 1 of 1 changes.") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if !strings.Contains(readFile(t, design), "Invoice") {
		t.Error("design.md does not document Invoice")
	}

	out, err = runCLI(t, root, "sync", "--scope", "design", "--dry-run")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "already in sync") {
		t.Errorf("second sync should be a no-op:\n%s", out)
	}
}

func TestTraceCommand(t *testing.T) {
	root := sampleProject(t)

	out, err := runCLI(t, root, "trace")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "# Traceability Matrix") || !strings.Contains(out, "| REQ-001 |") {
		t.Errorf("unexpected markdown:\n%s", out)
	}

	file := filepath.Join(t.TempDir(), "matrix.csv")
	out, err = runCLI(t, root, "trace", "--format", "csv", "--file", file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Wrote 2 requirements") {
		t.Errorf("unexpected output %q", out)
	}
	if !strings.HasPrefix(readFile(t, file), "Requirement,Title,") {
		t.Error("csv file missing header")
	}

	if _, err := runCLI(t, root, "trace", "--format", "pdf"); !errors.Is(err, application.ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestCoverageCommand(t *testing.T) {
	root := sampleProject(t)

	out, err := runCLI(t, root, "coverage")
	if ExitCode(err) != ExitFindings {
		t.Fatalf("50%% must not meet the default 80%%: %v", err)
	}
	if !strings.Contains(out, "Untested: REQ-002") {
		t.Errorf("unexpected output:\n%s", out)
	}

	if _, err := runCLI(t, root, "coverage", "--threshold", "50"); err != nil {
		t.Errorf("50%% should meet 50: %v", err)
	}
	if _, err := runCLI(t, root, "coverage", "--threshold", "120"); !errors.Is(err, application.ErrInvalidThreshold) {
		t.Errorf("expected ErrInvalidThreshold, got %v", err)
	}
}

func TestInvokeCommand(t *testing.T) {
	root := sampleProject(t)

	out, err := runCLI(t, root, "invoke", "check_spec_coverage", `{"threshold": 40}`)
	if err != nil {
		t.Fatal(err)
	}
	var report map[string]any
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if report["meets_threshold"] != true {
		t.Errorf("unexpected report %v", report)
	}

	if _, err := runCLI(t, root, "invoke", "rewrite_everything"); !errors.Is(err, application.ErrUnknownOperation) {
		t.Errorf("expected ErrUnknownOperation, got %v", err)
	}
	if _, err := runCLI(t, root, "invoke", "detect_spec_drift", "{"); !errors.Is(err, application.ErrInvalidArguments) {
		t.Errorf("expected ErrInvalidArguments, got %v", err)
	}
}

func TestInitCommand(t *testing.T) {
	root := writeProject(t, nil)

	if _, err := runCLI(t, root, "init"); err != nil {
		t.Fatal(err)
	}
	for _, rel := range []string{".specsync/config.yaml", "specs/requirements.md", "specs/design.md", "specs/api-spec.md", "specs/tasks.md"} {
		if _, err := os.Stat(filepath.Join(root, rel)); err != nil {
			t.Errorf("missing %s: %v", rel, err)
		}
	}
	if _, err := runCLI(t, root, "init"); err == nil {
		t.Error("expected an error when the config exists")
	}
	if _, err := runCLI(t, root, "init", "--force"); err != nil {
		t.Errorf("--force failed: %v", err)
	}
	if _, err := runCLI(t, root, "validate"); err != nil {
		t.Errorf("a fresh project should validate: %v", err)
	}
}

func TestAuditCommands(t *testing.T) {
	root := writeProject(t, map[string]string{
		"specs/requirements.md":       requirementsDoc,
		"specs/design.md":             designDoc,
		"specs/api-spec.md":           apiDoc,
		"internal/users/service.go":   serviceGo,
		"internal/billing/invoice.go": invoiceGo,
	})
	t.Setenv("SPECSYNC_AUDIT", "true")

	out, err := runCLI(t, root, "audit", "log")
	if err != nil || !strings.Contains(out, "No sync changes recorded.") {
		t.Fatalf("unexpected empty log output %q: %v", out, err)
	}

	if _, err := runCLI(t, root, "sync", "--scope", "design"); err != nil {
		t.Fatal(err)
	}
	out, err = runCLI(t, root, "audit", "log")
	if err != nil || !strings.Contains(out, "sync.change_applied") {
		t.Errorf("applied change not logged:\n%s", out)
	}
	out, err = runCLI(t, root, "audit", "verify")
	if err != nil || !strings.Contains(out, "intact") {
		t.Errorf("verify failed: %v\n%s", err, out)
	}
}

func TestMCPCommand_Skip(t *testing.T) {
	t.Setenv("SPECSYNC_SKIP_MCP_START", "true")
	root := sampleProject(t)
	if _, err := runCLI(t, root, "mcp"); err != nil {
		t.Fatalf("mcp failed: %v", err)
	}
}

func TestOpenAPICommand(t *testing.T) {
	root := sampleProject(t)
	out, err := runCLI(t, root, "openapi")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "/tools/detect_spec_drift") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestGetProjectRoot(t *testing.T) {
	old := projectPath
	defer func() { projectPath = old }()

	dir := t.TempDir()
	projectPath = dir
	got, err := getProjectRoot()
	if err != nil || got != dir {
		t.Errorf("got %q, %v", got, err)
	}

	file := filepath.Join(dir, "file.txt")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	projectPath = file
	if _, err := getProjectRoot(); err == nil {
		t.Error("expected an error for a file path")
	}

	projectPath = filepath.Join(dir, "missing")
	if _, err := getProjectRoot(); err == nil {
		t.Error("expected an error for a missing path")
	}
}
