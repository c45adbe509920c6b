package event

import "context"

// Store defines the interface for journal persistence.
type Store interface {
	// Append persists one or more events atomically.
	// Events are assigned sequence numbers in order of appearance.
	Append(ctx context.Context, events ...Event) error

	// LoadEvents retrieves all events of a stream in sequence order.
	LoadEvents(ctx context.Context, stream string) ([]Event, error)

	// LoadEventsFrom retrieves events starting from a sequence number.
	LoadEventsFrom(ctx context.Context, stream string, fromSeq uint64) ([]Event, error)

	// Subscribe returns a channel that receives new events of a stream.
	// The channel is closed when the context is cancelled.
	Subscribe(ctx context.Context, stream string) (<-chan Event, error)
}

// QueryOptions configures event queries.
type QueryOptions struct {
	// Types filters to specific event types (empty means all).
	Types []Type

	// FromTime filters events at or after this Unix nano timestamp.
	FromTime int64

	// ToTime filters events at or before this Unix nano timestamp.
	ToTime int64

	// Limit is the maximum number of events to return (0 = no limit).
	Limit int

	// Offset is the number of events to skip.
	Offset int
}

// Querier is an optional interface for stores that support queries.
type Querier interface {
	// Query retrieves events matching the given options.
	Query(ctx context.Context, stream string, opts QueryOptions) ([]Event, error)

	// CountEvents returns the number of events in a stream.
	CountEvents(ctx context.Context, stream string) (int64, error)

	// ListStreams returns every stream with events in the store.
	ListStreams(ctx context.Context) ([]string, error)
}
