package codescan

import (
	"errors"
	"fmt"
)

// ErrCodeParse indicates a source file could not be analysed.
var ErrCodeParse = errors.New("code parse error")

// CodeParseError records a per-file failure. The scan continues past it.
type CodeParseError struct {
	Path   string `json:"path"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

func (e *CodeParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

func (e *CodeParseError) Unwrap() error {
	return ErrCodeParse
}
