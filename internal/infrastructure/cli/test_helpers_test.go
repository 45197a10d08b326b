package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	requirementsDoc = "# Requirements\n\n## REQ-001: Create users\n- **Priority**: must\n\n## REQ-002: Audit trail\n- **Priority**: should\n"
	designDoc       = "# Design\n\n## DES-001: UserService\n\n- **Component**: UserService\n- **Location**: internal/users/service.go\n- **Satisfies**: REQ-001\n"
	apiDoc          = "# API\n\n## API-001: POST /users\n\n- **Handler**: handleCreate\n- **Location**: internal/users/service.go\n- **Satisfies**: REQ-001\n"
	serviceGo       = `package users

import "net/http"

type UserService struct {
	db string
}

func (s *UserService) handleCreate(w http.ResponseWriter, r *http.Request) {}

func (s *UserService) Mount(mux *http.ServeMux) {
	mux.HandleFunc("POST /users", s.handleCreate)
}
`
	serviceTestGo = "package users\n\nimport \"testing\"\n\nfunc TestUserService_Create(t *testing.T) {}\n"
	invoiceGo     = "package billing\n\n// Invoice is a billed amount.\ntype Invoice struct {\n\tID string `json:\"id\"`\n}\n"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	fn()

	_ = w.Close()
	os.Stdout = old

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	return buf.String()
}

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	t.Setenv("PROJECT_ROOT", "")
	t.Setenv("SPEC_DIR", "")
	t.Setenv("SPECSYNC_STRICT", "")
	t.Setenv("SPECSYNC_THRESHOLD", "")
	t.Setenv("SPECSYNC_AUDIT", "")
	t.Setenv("SPECSYNC_TIMEOUT", "")
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

// sampleProject has one implemented and one unimplemented requirement.
func sampleProject(t *testing.T) string {
	return writeProject(t, map[string]string{
		"specs/requirements.md":          requirementsDoc,
		"specs/design.md":                designDoc,
		"specs/api-spec.md":              apiDoc,
		"internal/users/service.go":      serviceGo,
		"internal/users/service_test.go": serviceTestGo,
	})
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// runCLI executes the root command against root and returns what it printed.
func runCLI(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	resetFlags(RootCmd)
	var err error
	out := captureStdout(t, func() {
		RootCmd.SetArgs(append([]string{"-C", root}, args...))
		err = RootCmd.Execute()
	})
	return out, err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
