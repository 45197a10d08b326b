package trace

import "errors"

// Traceability graph errors.
var (
	// ErrCyclicLink indicates an edge would close a cycle in the graph.
	ErrCyclicLink = errors.New("trace link would create a cycle")
	// ErrSelfLink indicates an artifact cannot trace to itself.
	ErrSelfLink = errors.New("artifact cannot trace to itself")
)
