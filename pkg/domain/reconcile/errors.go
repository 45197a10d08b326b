package reconcile

import (
	"errors"
	"fmt"
)

var (
	// ErrSyncApply indicates a change could not be applied to its document.
	ErrSyncApply = errors.New("sync change could not be applied")
	// ErrInvalidScope indicates an unknown sync scope.
	ErrInvalidScope = errors.New("invalid sync scope")
)

// ApplyError reports the change that failed and why.
type ApplyError struct {
	ChangeID string
	Document string
	Reason   string
	Err      error
}

func (e *ApplyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("apply %s to %s: %s: %v", e.ChangeID, e.Document, e.Reason, e.Err)
	}
	return fmt.Sprintf("apply %s to %s: %s", e.ChangeID, e.Document, e.Reason)
}

func (e *ApplyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSyncApply, e.Err}
	}
	return []error{ErrSyncApply}
}
