package mongodb

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

// eventDocument is the MongoDB document representation of an event.
type eventDocument struct {
	ID        string    `bson:"_id"`
	Stream    string    `bson:"stream"`
	Type      string    `bson:"type"`
	Sequence  uint64    `bson:"sequence"`
	Payload   []byte    `bson:"payload"`
	Timestamp time.Time `bson:"timestamp"`
	Version   int       `bson:"version,omitempty"`
}

// EventStore is a MongoDB-backed implementation of event.Store.
type EventStore struct {
	client       *Client
	collection   *mongo.Collection
	queryTimeout time.Duration

	mu          sync.RWMutex
	subscribers map[string][]chan event.Event
}

// NewEventStore creates a journal store on the configured collection.
func NewEventStore(client *Client) *EventStore {
	return &EventStore{
		client:       client,
		collection:   client.Collection(client.config.Collection),
		queryTimeout: client.config.QueryTimeout,
		subscribers:  make(map[string][]chan event.Event),
	}
}

// Append persists one or more events.
func (s *EventStore) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if e.Type == "" || e.Stream == "" {
			return event.ErrInvalidEvent
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	sequences := make(map[string]uint64)
	pending := slices.Clone(events)
	docs := make([]any, len(pending))
	for i := range pending {
		e := &pending[i]
		seq, ok := sequences[e.Stream]
		if !ok {
			var err error
			if seq, err = s.maxSequence(ctx, e.Stream); err != nil {
				return err
			}
		}
		seq++
		sequences[e.Stream] = seq

		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.Version == 0 {
			e.Version = 1
		}
		e.Sequence = seq
		docs[i] = toDocument(e)
	}

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
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
	filter := bson.M{"stream": stream}
	if fromSeq > 0 {
		filter["sequence"] = bson.M{"$gte": fromSeq}
	}
	return s.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}}))
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
	return s.find(ctx, queryFilter(stream, opts), findOptions(opts))
}

// CountEvents returns the number of events in a stream.
func (s *EventStore) CountEvents(ctx context.Context, stream string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	count, err := s.collection.CountDocuments(ctx, bson.M{"stream": stream})
	if err != nil {
		return 0, s.wrapError(err)
	}
	return count, nil
}

// ListStreams returns every stream with events in the store.
func (s *EventStore) ListStreams(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	values, err := s.collection.Distinct(ctx, "stream", bson.M{})
	if err != nil {
		return nil, s.wrapError(err)
	}

	streams := make([]string, 0, len(values))
	for _, v := range values {
		if name, ok := v.(string); ok {
			streams = append(streams, name)
		}
	}
	slices.Sort(streams)
	return streams, nil
}

// Close closes subscriber channels and disconnects the client.
func (s *EventStore) Close() error {
	s.mu.Lock()
	for _, subs := range s.subscribers {
		for _, ch := range subs {
			close(ch)
		}
	}
	s.subscribers = make(map[string][]chan event.Event)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.client.config.ConnectTimeout)
	defer cancel()
	return s.client.Close(ctx)
}

func (s *EventStore) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]event.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, s.wrapError(err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var events []event.Event
	for cursor.Next(ctx) {
		var doc eventDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, s.wrapError(err)
		}
		events = append(events, fromDocument(&doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, s.wrapError(err)
	}
	return events, nil
}

func (s *EventStore) maxSequence(ctx context.Context, stream string) (uint64, error) {
	opts := options.FindOne().
		SetSort(bson.D{{Key: "sequence", Value: -1}}).
		SetProjection(bson.M{"sequence": 1})

	var doc struct {
		Sequence uint64 `bson:"sequence"`
	}
	err := s.collection.FindOne(ctx, bson.M{"stream": stream}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, s.wrapError(err)
	}
	return doc.Sequence, nil
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

// queryFilter builds the find filter for a journal query. Times are Unix
// nanoseconds.
func queryFilter(stream string, opts event.QueryOptions) bson.M {
	filter := bson.M{"stream": stream}

	if len(opts.Types) > 0 {
		types := make([]string, len(opts.Types))
		for i, t := range opts.Types {
			types[i] = string(t)
		}
		filter["type"] = bson.M{"$in": types}
	}

	if opts.FromTime > 0 || opts.ToTime > 0 {
		window := bson.M{}
		if opts.FromTime > 0 {
			window["$gte"] = time.Unix(0, opts.FromTime).UTC()
		}
		if opts.ToTime > 0 {
			window["$lte"] = time.Unix(0, opts.ToTime).UTC()
		}
		filter["timestamp"] = window
	}

	return filter
}

func findOptions(opts event.QueryOptions) *options.FindOptions {
	find := options.Find().SetSort(bson.D{{Key: "sequence", Value: 1}})
	if opts.Offset > 0 {
		find.SetSkip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		find.SetLimit(int64(opts.Limit))
	}
	return find
}

func toDocument(e *event.Event) *eventDocument {
	return &eventDocument{
		ID:        e.ID,
		Stream:    e.Stream,
		Type:      string(e.Type),
		Sequence:  e.Sequence,
		Payload:   e.Payload,
		Timestamp: e.Timestamp,
		Version:   e.Version,
	}
}

func fromDocument(doc *eventDocument) event.Event {
	return event.Event{
		ID:        doc.ID,
		Stream:    doc.Stream,
		Type:      event.Type(doc.Type),
		Sequence:  doc.Sequence,
		Payload:   doc.Payload,
		Timestamp: doc.Timestamp,
		Version:   doc.Version,
	}
}

// wrapError wraps MongoDB errors with domain errors.
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
