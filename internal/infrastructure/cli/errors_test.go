package cli

import (
	"errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/specsync/internal/infrastructure/config"
	"github.com/felixgeelhaar/specsync/pkg/application"
)

func TestCLIError(t *testing.T) {
	t.Run("Error with cause", func(t *testing.T) {
		cause := errors.New("root cause")
		e := NewCLIError("something failed", "try this", cause)
		if e.Error() != "something failed: root cause" {
			t.Fatalf("unexpected: %s", e.Error())
		}
		if e.ExitCode != 1 {
			t.Fatalf("expected exit code 1, got %d", e.ExitCode)
		}
	})

	t.Run("Error without cause", func(t *testing.T) {
		e := NewCLIError("something failed", "try this", nil)
		if e.Error() != "something failed" {
			t.Fatalf("unexpected: %s", e.Error())
		}
	})

	t.Run("Unwrap returns cause", func(t *testing.T) {
		cause := errors.New("root")
		e := NewCLIError("msg", "", cause)
		if !errors.Is(e, cause) {
			t.Fatal("errors.Is should match wrapped cause")
		}
	})
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{name: "nil returns nil"},
		{name: "scope", err: application.ErrInvalidScope, wantMsg: "invalid scope"},
		{name: "format", err: application.ErrInvalidFormat, wantMsg: "invalid format"},
		{name: "threshold", err: application.ErrInvalidThreshold, wantMsg: "invalid threshold"},
		{name: "operation", err: application.ErrUnknownOperation, wantMsg: "unknown operation"},
		{name: "arguments", err: application.ErrInvalidArguments, wantMsg: "invalid arguments"},
		{name: "config", err: config.ErrInvalidConfig, wantMsg: "invalid configuration"},
		{name: "wrapped", err: fmt.Errorf("detect: %w", application.ErrInvalidScope), wantMsg: "invalid scope"},
		{name: "unmapped error passes through", err: errors.New("something else")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MapError(tt.err)
			if tt.err == nil {
				if result != nil {
					t.Fatal("expected nil")
				}
				return
			}
			if tt.wantMsg == "" {
				if result != tt.err {
					t.Fatal("unmapped error should pass through unchanged")
				}
				return
			}
			var cliErr *CLIError
			if !errors.As(result, &cliErr) {
				t.Fatalf("expected CLIError, got %T", result)
			}
			if cliErr.Message != tt.wantMsg || cliErr.Hint == "" {
				t.Errorf("got %q / %q", cliErr.Message, cliErr.Hint)
			}
			if !errors.Is(result, tt.err) {
				t.Error("mapped error must wrap the original")
			}
		})
	}
}

func TestMapError_KeepsCLIErrors(t *testing.T) {
	orig := findingsError("3 drift findings", "sync")
	if got := MapError(fmt.Errorf("wrapped: %w", orig)); !errors.Is(got, orig) {
		t.Fatalf("CLIError lost: %v", got)
	}
}

func TestExitCode(t *testing.T) {
	if ExitCode(nil) != 0 {
		t.Error("nil must exit 0")
	}
	if ExitCode(errors.New("boom")) != 1 {
		t.Error("plain errors exit 1")
	}
	if ExitCode(fmt.Errorf("x: %w", findingsError("drift", ""))) != ExitFindings {
		t.Error("findings must exit with ExitFindings")
	}
}
