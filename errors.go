package console

import "errors"

// Common errors
var (
	// ErrInvalidConfig is returned when the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrServerAlreadyStarted is returned when Start is called on a running server
	ErrServerAlreadyStarted = errors.New("server already started")

	// ErrServerNotStarted is returned when Stop is called on a server that has not started
	ErrServerNotStarted = errors.New("server not started")
)
