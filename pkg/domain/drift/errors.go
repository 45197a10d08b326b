package drift

import "errors"

// ErrInvalidScope indicates an unknown drift scope.
var ErrInvalidScope = errors.New("invalid scope")
