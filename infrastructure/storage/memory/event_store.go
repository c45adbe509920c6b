// Package memory provides an in-memory journal store.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

// EventStore is an in-memory implementation of event.Store.
type EventStore struct {
	events      map[string][]event.Event // stream -> events
	subscribers map[string][]chan event.Event
	sequences   map[string]uint64 // stream -> last sequence
	mu          sync.RWMutex
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{
		events:      make(map[string][]event.Event),
		subscribers: make(map[string][]chan event.Event),
		sequences:   make(map[string]uint64),
	}
}

// Append persists one or more events atomically.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		if e.Type == "" || e.Stream == "" {
			return event.ErrInvalidEvent
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byStream := make(map[string][]event.Event)
	var order []string
	for _, e := range events {
		if _, ok := byStream[e.Stream]; !ok {
			order = append(order, e.Stream)
		}
		byStream[e.Stream] = append(byStream[e.Stream], e)
	}

	for _, stream := range order {
		streamEvents := byStream[stream]
		seq := s.sequences[stream]

		for i := range streamEvents {
			if streamEvents[i].ID == "" {
				streamEvents[i].ID = uuid.New().String()
			}
			seq++
			streamEvents[i].Sequence = seq
		}

		s.events[stream] = append(s.events[stream], streamEvents...)
		s.sequences[stream] = seq

		for _, sub := range s.subscribers[stream] {
			for _, e := range streamEvents {
				select {
				case sub <- e:
				default:
					// Channel full, skip (non-blocking)
				}
			}
		}
	}

	return nil
}

// LoadEvents retrieves all events of a stream in sequence order.
func (s *EventStore) LoadEvents(ctx context.Context, stream string) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.events[stream]), nil
}

// LoadEventsFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadEventsFrom(ctx context.Context, stream string, fromSeq uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for _, e := range s.events[stream] {
		if e.Sequence >= fromSeq {
			result = append(result, e)
		}
	}
	return result, nil
}

// Subscribe returns a channel that receives new events of a stream.
func (s *EventStore) Subscribe(ctx context.Context, stream string) (<-chan event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan event.Event, 100)
	s.subscribers[stream] = append(s.subscribers[stream], ch)

	go func() {
		<-ctx.Done()
		s.unsubscribe(stream, ch)
	}()

	return ch, nil
}

func (s *EventStore) unsubscribe(stream string, ch chan event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subs := s.subscribers[stream]
	for i, sub := range subs {
		if sub == ch {
			s.subscribers[stream] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(s.subscribers[stream]) == 0 {
		delete(s.subscribers, stream)
	}
}

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, stream string, opts event.QueryOptions) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []event.Event
	for _, e := range s.events[stream] {
		if matchesQuery(e, opts) {
			result = append(result, e)
		}
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return []event.Event{}, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

func matchesQuery(e event.Event, opts event.QueryOptions) bool {
	if len(opts.Types) > 0 && !slices.Contains(opts.Types, e.Type) {
		return false
	}

	ts := e.Timestamp.UnixNano()
	if opts.FromTime > 0 && ts < opts.FromTime {
		return false
	}
	if opts.ToTime > 0 && ts > opts.ToTime {
		return false
	}
	return true
}

// CountEvents returns the number of events in a stream.
func (s *EventStore) CountEvents(ctx context.Context, stream string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.events[stream])), nil
}

// ListStreams returns every stream with events, sorted by name.
func (s *EventStore) ListStreams(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	streams := make([]string, 0, len(s.events))
	for stream := range s.events {
		streams = append(streams, stream)
	}
	sort.Strings(streams)
	return streams, nil
}

// Len returns the total number of events across all streams.
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, events := range s.events {
		count += len(events)
	}
	return count
}

var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)

// Close closes all subscriber channels. The events stay readable.
func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, subs := range s.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	s.subscribers = make(map[string][]chan event.Event)
	return nil
}
