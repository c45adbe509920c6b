package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

// EventStore is a PostgreSQL-backed implementation of event.Store.
type EventStore struct {
	pool        *pgxpool.Pool
	schema      string
	subscribers map[string][]chan event.Event
	mu          sync.RWMutex
}

// NewEventStore creates a new PostgreSQL event store.
func NewEventStore(pool *pgxpool.Pool, schema string) *EventStore {
	if schema == "" {
		schema = "public"
	}
	return &EventStore{
		pool:        pool,
		schema:      schema,
		subscribers: make(map[string][]chan event.Event),
	}
}

// tableName returns the fully qualified table name.
func (s *EventStore) tableName() string {
	return fmt.Sprintf("%s.journal", s.schema)
}

// Migrate creates the journal table when it does not exist.
func (s *EventStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %[1]s (
			id TEXT PRIMARY KEY,
			stream TEXT NOT NULL,
			type TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			payload JSONB,
			sequence BIGINT NOT NULL,
			version INTEGER NOT NULL DEFAULT 1,
			UNIQUE (stream, sequence)
		);
		CREATE INDEX IF NOT EXISTS journal_timestamp_idx ON %[1]s (timestamp);
	`, s.tableName())

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return s.wrapError(err)
	}
	return nil
}

// Append persists one or more events atomically.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	for _, e := range events {
		if e.Type == "" || e.Stream == "" {
			return event.ErrInvalidEvent
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.wrapError(err)
	}
	defer tx.Rollback(ctx)

	sequences := make(map[string]uint64)
	for _, e := range events {
		if _, ok := sequences[e.Stream]; ok {
			continue
		}
		var maxSeq *int64
		err := tx.QueryRow(ctx,
			fmt.Sprintf("SELECT MAX(sequence) FROM %s WHERE stream = $1", s.tableName()),
			e.Stream,
		).Scan(&maxSeq)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return s.wrapError(err)
		}
		if maxSeq != nil {
			sequences[e.Stream] = uint64(*maxSeq)
		} else {
			sequences[e.Stream] = 0
		}
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (id, stream, type, timestamp, payload, sequence, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, s.tableName())

	pending := slices.Clone(events)
	for i := range pending {
		e := &pending[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		sequences[e.Stream]++
		e.Sequence = sequences[e.Stream]
		if e.Version == 0 {
			e.Version = 1
		}

		_, err := tx.Exec(ctx, insertQuery,
			e.ID,
			e.Stream,
			string(e.Type),
			e.Timestamp,
			[]byte(e.Payload),
			int64(e.Sequence),
			e.Version,
		)
		if err != nil {
			return s.wrapError(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return s.wrapError(err)
	}

	s.notifySubscribers(pending)

	return nil
}

// LoadEvents retrieves all events of a stream in sequence order.
func (s *EventStore) LoadEvents(ctx context.Context, stream string) ([]event.Event, error) {
	return s.LoadEventsFrom(ctx, stream, 0)
}

// LoadEventsFrom retrieves events starting from a specific sequence number.
func (s *EventStore) LoadEventsFrom(ctx context.Context, stream string, fromSeq uint64) ([]event.Event, error) {
	query := fmt.Sprintf(`
		SELECT id, stream, type, timestamp, payload, sequence, version
		FROM %s
		WHERE stream = $1 AND sequence >= $2
		ORDER BY sequence ASC
	`, s.tableName())

	rows, err := s.pool.Query(ctx, query, stream, int64(fromSeq))
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
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

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, stream string, opts event.QueryOptions) ([]event.Event, error) {
	query, args := s.buildQuerySQL(stream, opts)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountEvents returns the number of events in a stream.
func (s *EventStore) CountEvents(ctx context.Context, stream string) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE stream = $1`, s.tableName())

	var count int64
	if err := s.pool.QueryRow(ctx, query, stream).Scan(&count); err != nil {
		return 0, s.wrapError(err)
	}
	return count, nil
}

// ListStreams returns every stream with events in the store.
func (s *EventStore) ListStreams(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT stream FROM %s ORDER BY stream`, s.tableName())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer rows.Close()

	var streams []string
	for rows.Next() {
		var stream string
		if err := rows.Scan(&stream); err != nil {
			return nil, s.wrapError(err)
		}
		streams = append(streams, stream)
	}

	return streams, rows.Err()
}

// Close releases the pool and closes subscriber channels.
func (s *EventStore) Close() error {
	s.mu.Lock()
	for _, subs := range s.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	s.subscribers = make(map[string][]chan event.Event)
	s.mu.Unlock()

	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// buildQuerySQL constructs the SELECT query for querying events.
func (s *EventStore) buildQuerySQL(stream string, opts event.QueryOptions) (string, []any) {
	args := []any{stream}
	conditions := []string{"stream = $1"}

	if len(opts.Types) > 0 {
		types := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			types[i] = string(t)
		}
		args = append(args, types)
		conditions = append(conditions, fmt.Sprintf("type = ANY($%d)", len(args)))
	}

	if opts.FromTime > 0 {
		args = append(args, time.Unix(0, opts.FromTime).UTC())
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)))
	}

	if opts.ToTime > 0 {
		args = append(args, time.Unix(0, opts.ToTime).UTC())
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	query := fmt.Sprintf(
		"SELECT id, stream, type, timestamp, payload, sequence, version FROM %s WHERE %s ORDER BY sequence ASC",
		s.tableName(), strings.Join(conditions, " AND "),
	)

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	return query, args
}

// scanEvents scans rows into Event structs.
func scanEvents(rows pgx.Rows) ([]event.Event, error) {
	var events []event.Event
	for rows.Next() {
		var (
			e         event.Event
			eventType string
			payload   []byte
			sequence  int64
		)

		if err := rows.Scan(&e.ID, &e.Stream, &eventType, &e.Timestamp, &payload, &sequence, &e.Version); err != nil {
			return nil, err
		}

		e.Type = event.Type(eventType)
		e.Payload = payload
		e.Sequence = uint64(sequence)
		events = append(events, e)
	}

	return events, rows.Err()
}

func (s *EventStore) notifySubscribers(events []event.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range events {
		for _, ch := range s.subscribers[e.Stream] {
			select {
			case ch <- e:
			default:
				// Channel full, skip
			}
		}
	}
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

// wrapError wraps database errors with domain errors.
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
