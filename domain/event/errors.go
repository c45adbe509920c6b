package event

import "errors"

// Domain errors for journal operations.
var (
	// ErrStreamNotFound is returned when a stream has no events.
	ErrStreamNotFound = errors.New("stream not found in journal")

	// ErrInvalidEvent is returned when an event is malformed.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrConnectionFailed is returned when connection to the store backend fails.
	ErrConnectionFailed = errors.New("journal connection failed")

	// ErrPublisherClosed is returned when publishing after Close.
	ErrPublisherClosed = errors.New("publisher closed")
)
