package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

// EventStore is a BadgerDB-backed implementation of event.Store.
type EventStore struct {
	db          *badger.DB
	keyPrefix   string
	subscribers map[string][]chan event.Event
	mu          sync.RWMutex
	gcStop      chan struct{}
	gcWg        sync.WaitGroup
	closeOnce   sync.Once
}

// NewEventStore creates a new BadgerDB event store with the given configuration.
func NewEventStore(cfg Config, opts ...Option) (*EventStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := NewEventStoreFromDB(db, cfg.KeyPrefix)

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// NewEventStoreFromDB creates an event store from an existing BadgerDB database.
func NewEventStoreFromDB(db *badger.DB, keyPrefix string) *EventStore {
	return &EventStore{
		db:          db,
		keyPrefix:   keyPrefix,
		subscribers: make(map[string][]chan event.Event),
		gcStop:      make(chan struct{}),
	}
}

// startGC starts the value log garbage collection goroutine.
func (s *EventStore) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				for s.db.RunValueLogGC(discardRatio) == nil {
				}
			}
		}
	}()
}

// Key format: prefix:events:stream:sequence (8 bytes, big-endian)
func (s *EventStore) eventKey(stream string, seq uint64) []byte {
	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, seq)
	return append(s.eventPrefix(stream), seqBytes...)
}

func (s *EventStore) eventPrefix(stream string) []byte {
	return []byte(s.keyPrefix + "events:" + stream + ":")
}

// Key format: prefix:seq:stream
func (s *EventStore) seqKey(stream string) []byte {
	return []byte(s.keyPrefix + "seq:" + stream)
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

	pending := slices.Clone(events)
	sequences := make(map[string]uint64)

	err := s.db.Update(func(txn *badger.Txn) error {
		for i := range pending {
			e := &pending[i]

			seq, ok := sequences[e.Stream]
			if !ok {
				var err error
				seq, err = readSequence(txn, s.seqKey(e.Stream))
				if err != nil {
					return err
				}
			}

			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			seq++
			e.Sequence = seq
			sequences[e.Stream] = seq

			data, err := json.Marshal(e)
			if err != nil {
				return err
			}
			if err := txn.Set(s.eventKey(e.Stream, seq), data); err != nil {
				return err
			}
		}

		for stream, seq := range sequences {
			seqBytes := make([]byte, 8)
			binary.BigEndian.PutUint64(seqBytes, seq)
			if err := txn.Set(s.seqKey(stream), seqBytes); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.notifySubscribers(pending)

	return nil
}

func readSequence(txn *badger.Txn, key []byte) (uint64, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var seq uint64
	err = item.Value(func(val []byte) error {
		if len(val) == 8 {
			seq = binary.BigEndian.Uint64(val)
		}
		return nil
	})
	return seq, err
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

	var events []event.Event
	err := s.scan(stream, fromSeq, func(e event.Event) bool {
		events = append(events, e)
		return true
	})
	return events, err
}

// scan iterates the events of a stream from fromSeq until fn returns false.
func (s *EventStore) scan(stream string, fromSeq uint64, fn func(event.Event) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.eventPrefix(stream)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(s.eventKey(stream, fromSeq)); it.Valid(); it.Next() {
			var e event.Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				continue // Skip malformed entries
			}
			if !fn(e) {
				return nil
			}
		}
		return nil
	})
}

// Subscribe returns a channel that receives new events of a stream.
func (s *EventStore) Subscribe(ctx context.Context, stream string) (<-chan event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	ch := make(chan event.Event, 100)
	s.subscribers[stream] = append(s.subscribers[stream], ch)
	s.mu.Unlock()

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

// Query retrieves events matching the given options.
func (s *EventStore) Query(ctx context.Context, stream string, opts event.QueryOptions) ([]event.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []event.Event
	skip := opts.Offset

	err := s.scan(stream, 0, func(e event.Event) bool {
		if len(opts.Types) > 0 && !slices.Contains(opts.Types, e.Type) {
			return true
		}

		ts := e.Timestamp.UnixNano()
		if opts.FromTime > 0 && ts < opts.FromTime {
			return true
		}
		if opts.ToTime > 0 && ts > opts.ToTime {
			return true
		}

		if skip > 0 {
			skip--
			return true
		}

		events = append(events, e)
		return opts.Limit <= 0 || len(events) < opts.Limit
	})

	return events, err
}

// CountEvents returns the number of events in a stream.
func (s *EventStore) CountEvents(ctx context.Context, stream string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = s.eventPrefix(stream)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})

	return count, err
}

// ListStreams returns every stream with events in the store.
func (s *EventStore) ListStreams(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(s.keyPrefix + "seq:")
	var streams []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			streams = append(streams, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})

	return streams, err
}

// Close closes the database and all subscriber channels.
func (s *EventStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.gcStop)
		s.gcWg.Wait()

		s.mu.Lock()
		for _, subs := range s.subscribers {
			for _, ch := range subs {
				close(ch)
			}
		}
		s.subscribers = make(map[string][]chan event.Event)
		s.mu.Unlock()

		err = s.db.Close()
	})
	return err
}

// DB returns the underlying BadgerDB database.
func (s *EventStore) DB() *badger.DB {
	return s.db
}

var (
	_ event.Store   = (*EventStore)(nil)
	_ event.Querier = (*EventStore)(nil)
)
