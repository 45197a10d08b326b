package cli

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/specsync/internal/infrastructure/config"
	"github.com/felixgeelhaar/specsync/pkg/application"
)

// Exit codes beyond the generic failure.
const (
	ExitFindings = 2
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// findingsError reports a successful run that found problems.
func findingsError(msg, hint string) *CLIError {
	return &CLIError{Message: msg, Hint: hint, ExitCode: ExitFindings}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	switch {
	case errors.Is(err, application.ErrInvalidScope):
		return NewCLIError("invalid scope", "Use one of: all, requirements, design, api, tasks (sync also accepts models)", err)
	case errors.Is(err, application.ErrInvalidFormat):
		return NewCLIError("invalid format", "Use one of: markdown, json, csv", err)
	case errors.Is(err, application.ErrInvalidThreshold):
		return NewCLIError("invalid threshold", "Use a percentage between 0 and 100", err)
	case errors.Is(err, application.ErrUnknownOperation):
		return NewCLIError("unknown operation", "Run 'specsync invoke --help' to list the operations", err)
	case errors.Is(err, application.ErrInvalidArguments):
		return NewCLIError("invalid arguments", "Pass a JSON object such as '{\"scope\":\"design\"}'", err)
	case errors.Is(err, config.ErrInvalidConfig):
		return NewCLIError("invalid configuration", fmt.Sprintf("Fix %s or the SPECSYNC_* environment variables", ".specsync/config.yaml"), err)
	}

	return err
}
