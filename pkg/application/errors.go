package application

import "errors"

// Request errors. These are the only errors that fail an operation; every
// other problem degrades the report instead.
var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrInvalidScope     = errors.New("invalid scope")
	ErrInvalidFormat    = errors.New("invalid format")
	ErrInvalidThreshold = errors.New("invalid threshold")
	ErrInvalidArguments = errors.New("invalid arguments")
)
