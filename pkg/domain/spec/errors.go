package spec

import (
	"errors"
	"fmt"
)

// ErrMalformedDocument indicates a document violates a required structural marker.
var ErrMalformedDocument = errors.New("malformed document")

// MalformedDocumentError reports where a document broke the marker rules.
type MalformedDocumentError struct {
	Document string
	Line     int
	Reason   string
}

func (e *MalformedDocumentError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.Document, e.Line, e.Reason)
}

func (e *MalformedDocumentError) Unwrap() error {
	return ErrMalformedDocument
}
