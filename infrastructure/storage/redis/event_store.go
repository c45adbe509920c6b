package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// ErrConnectionFailed is returned when Redis cannot be reached.
var ErrConnectionFailed = fmt.Errorf("redis: %w", event.ErrConnectionFailed)

// EventStore is a Redis-backed implementation of event.Store.
//
// Each stream is a sorted set scored by sequence. Sequences are reserved
// with INCRBY so concurrent writers never collide, and new events are
// published on a per-stream channel for subscribers.
type EventStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewEventStore connects to Redis and verifies the connection.
func NewEventStore(ctx context.Context, cfg Config, opts ...Option) (*EventStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return NewEventStoreFromClient(client, cfg.KeyPrefix), nil
}

// NewEventStoreFromClient creates a store from an existing Redis client.
func NewEventStoreFromClient(client *redis.Client, keyPrefix string) *EventStore {
	return &EventStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *EventStore) eventsKey(stream string) string {
	return s.keyPrefix + "journal:" + stream
}

func (s *EventStore) seqKey(stream string) string {
	return s.keyPrefix + "seq:" + stream
}

func (s *EventStore) streamsKey() string {
	return s.keyPrefix + "streams"
}

func (s *EventStore) channel(stream string) string {
	return s.keyPrefix + "events:" + stream
}

// Append persists one or more events.
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

	counts := make(map[string]int64)
	for _, e := range events {
		counts[e.Stream]++
	}

	// next holds the first sequence reserved for each stream.
	next := make(map[string]uint64, len(counts))
	for stream, n := range counts {
		last, err := s.client.IncrBy(ctx, s.seqKey(stream), n).Result()
		if err != nil {
			return s.wrapError(err)
		}
		next[stream] = uint64(last - n + 1)
	}

	pending := slices.Clone(events)
	encoded := make([][]byte, len(pending))
	for i := range pending {
		e := &pending[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.Version == 0 {
			e.Version = 1
		}
		e.Sequence = next[e.Stream]
		next[e.Stream]++

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("redis: encode event: %w", err)
		}
		encoded[i] = data
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, e := range pending {
			pipe.ZAdd(ctx, s.eventsKey(e.Stream), redis.Z{Score: float64(e.Sequence), Member: encoded[i]})
			pipe.SAdd(ctx, s.streamsKey(), e.Stream)
		}
		return nil
	})
	if err != nil {
		return s.wrapError(err)
	}

	for i, e := range pending {
		if err := s.client.Publish(ctx, s.channel(e.Stream), encoded[i]).Err(); err != nil {
			logging.Warn().
				Add(logging.Component("redis")).
				Add(logging.Str("stream", e.Stream)).
				Add(logging.ErrorField(err)).
				Msg("publish to subscribers failed")
		}
	}
	return nil
}

// LoadEvents retrieves all events of a stream in sequence order.
func (s *EventStore) LoadEvents(ctx context.Context, stream string) ([]event.Event, error) {
	return s.LoadEventsFrom(ctx, stream, 0)
}

// LoadEventsFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadEventsFrom(ctx context.Context, stream string, fromSeq uint64) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	members, err := s.client.ZRangeByScore(ctx, s.eventsKey(stream), &redis.ZRangeBy{
		Min: strconv.FormatUint(fromSeq, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, s.wrapError(err)
	}
	return decodeEvents(members)
}

// Subscribe returns a channel that receives new events of a stream. The
// channel is closed when ctx is cancelled.
func (s *EventStore) Subscribe(ctx context.Context, stream string) (<-chan event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pubsub := s.client.Subscribe(ctx, s.channel(stream))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, s.wrapError(err)
	}

	out := make(chan event.Event, 100)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e event.Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				default:
					// Channel full, skip
				}
			}
		}
	}()

	return out, nil
}

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, stream string, opts event.QueryOptions) ([]event.Event, error) {
	events, err := s.LoadEvents(ctx, stream)
	if err != nil {
		return nil, err
	}
	return filterEvents(events, opts), nil
}

// CountEvents returns the number of events in a stream.
func (s *EventStore) CountEvents(ctx context.Context, stream string) (int64, error) {
	n, err := s.client.ZCard(ctx, s.eventsKey(stream)).Result()
	if err != nil {
		return 0, s.wrapError(err)
	}
	return n, nil
}

// ListStreams returns every stream with events in the store.
func (s *EventStore) ListStreams(ctx context.Context) ([]string, error) {
	streams, err := s.client.SMembers(ctx, s.streamsKey()).Result()
	if err != nil {
		return nil, s.wrapError(err)
	}
	slices.Sort(streams)
	return streams, nil
}

// Close closes the Redis connection.
func (s *EventStore) Close() error {
	return s.client.Close()
}

func decodeEvents(members []string) ([]event.Event, error) {
	events := make([]event.Event, 0, len(members))
	for _, m := range members {
		var e event.Event
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("redis: decode event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

// filterEvents applies type, time, offset and limit filters in order.
func filterEvents(events []event.Event, opts event.QueryOptions) []event.Event {
	var out []event.Event
	for _, e := range events {
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, e.Type) {
			continue
		}
		ts := e.Timestamp.UnixNano()
		if opts.FromTime > 0 && ts < opts.FromTime {
			continue
		}
		if opts.ToTime > 0 && ts > opts.ToTime {
			continue
		}
		out = append(out, e)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out
}

// wrapError wraps Redis errors with domain errors.
func (s *EventStore) wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return errors.Join(ErrConnectionFailed, err)
}

var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)
