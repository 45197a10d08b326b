package artifact

import "errors"

// Artifact model errors.
var (
	// ErrInvalidArtifact indicates an entity or fact violates a model invariant.
	ErrInvalidArtifact = errors.New("invalid artifact")
)
