package events

import "errors"

// Domain-specific errors for the event bus.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNilHandler is returned when Subscribe is called with a nil handler.
	ErrNilHandler = errors.New("events: handler cannot be nil")
)
