package event

import "context"

// Publisher publishes journal events.
type Publisher interface {
	// Publish sends events to the journal.
	Publish(ctx context.Context, events ...Event) error

	// Close releases any resources held by the publisher.
	Close() error
}

// Sink receives every published event after it has been journaled.
type Sink interface {
	Deliver(ctx context.Context, e Event) error
}
