package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/toolchanger/domain/event"
)

// maxTransactItems is the DynamoDB limit for one TransactWriteItems call.
const maxTransactItems = 100

// API is the subset of the DynamoDB client used by the journal.
type API interface {
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// eventItem is the DynamoDB item representation of an event. Timestamps
// are Unix nanoseconds so time filters compare numerically.
type eventItem struct {
	Stream    string `dynamodbav:"stream"`
	Sequence  uint64 `dynamodbav:"sequence"`
	ID        string `dynamodbav:"id"`
	Type      string `dynamodbav:"type"`
	Timestamp int64  `dynamodbav:"timestamp"`
	Payload   []byte `dynamodbav:"payload,omitempty"`
	Version   int    `dynamodbav:"version,omitempty"`
}

// EventStore is a DynamoDB-backed implementation of event.Store.
type EventStore struct {
	api          API
	tableName    string
	queryTimeout time.Duration

	mu          sync.RWMutex
	subscribers map[string][]chan event.Event
}

// NewEventStore creates a journal store on the client's table.
func NewEventStore(client *Client) *EventStore {
	return &EventStore{
		api:          client.api,
		tableName:    client.config.TableName,
		queryTimeout: client.config.QueryTimeout,
		subscribers:  make(map[string][]chan event.Event),
	}
}

// Append persists events with a conditional put per sequence, so a
// concurrent writer that took the same sequence makes the append fail.
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

	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("sequence"))).
		Build()
	if err != nil {
		return err
	}

	sequences := make(map[string]uint64)
	pending := slices.Clone(events)
	writes := make([]types.TransactWriteItem, 0, len(pending))
	for i := range pending {
		e := &pending[i]
		seq, ok := sequences[e.Stream]
		if !ok {
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

		av, err := attributevalue.MarshalMap(toItem(e))
		if err != nil {
			return fmt.Errorf("dynamodb: encode event: %w", err)
		}
		writes = append(writes, types.TransactWriteItem{
			Put: &types.Put{
				TableName:                aws.String(s.tableName),
				Item:                     av,
				ConditionExpression:      cond.Condition(),
				ExpressionAttributeNames: cond.Names(),
			},
		})
	}

	for chunk := range slices.Chunk(writes, maxTransactItems) {
		if _, err := s.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: chunk}); err != nil {
			return s.wrapError(err)
		}
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
	input, err := s.queryInput(stream, fromSeq, event.QueryOptions{})
	if err != nil {
		return nil, err
	}
	return s.query(ctx, input)
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

// Query retrieves events matching the given options. Type and time filters
// run server side; offset and limit apply to the filtered result.
func (s *EventStore) Query(ctx context.Context, stream string, opts event.QueryOptions) ([]event.Event, error) {
	input, err := s.queryInput(stream, 0, opts)
	if err != nil {
		return nil, err
	}
	events, err := s.query(ctx, input)
	if err != nil {
		return nil, err
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(events) {
			return nil, nil
		}
		events = events[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(events) {
		events = events[:opts.Limit]
	}
	return events, nil
}

// CountEvents returns the number of events in a stream.
func (s *EventStore) CountEvents(ctx context.Context, stream string) (int64, error) {
	input, err := s.queryInput(stream, 0, event.QueryOptions{})
	if err != nil {
		return 0, err
	}
	input.Select = types.SelectCount

	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var total int64
	pages := dynamodb.NewQueryPaginator(s.api, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return 0, s.wrapError(err)
		}
		total += int64(page.Count)
	}
	return total, nil
}

// ListStreams returns every stream with events in the store.
func (s *EventStore) ListStreams(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	proj, err := expression.NewBuilder().
		WithProjection(expression.NamesList(expression.Name("stream"))).
		Build()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	pages := dynamodb.NewScanPaginator(s.api, &dynamodb.ScanInput{
		TableName:                aws.String(s.tableName),
		ProjectionExpression:     proj.Projection(),
		ExpressionAttributeNames: proj.Names(),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, s.wrapError(err)
		}
		for _, item := range page.Items {
			var row struct {
				Stream string `dynamodbav:"stream"`
			}
			if err := attributevalue.UnmarshalMap(item, &row); err == nil && row.Stream != "" {
				seen[row.Stream] = true
			}
		}
	}

	streams := make([]string, 0, len(seen))
	for name := range seen {
		streams = append(streams, name)
	}
	slices.Sort(streams)
	return streams, nil
}

// Close closes subscriber channels. The AWS client holds no connection.
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

// queryInput builds the key condition and filter for a stream query.
func (s *EventStore) queryInput(stream string, fromSeq uint64, opts event.QueryOptions) (*dynamodb.QueryInput, error) {
	key := expression.Key("stream").Equal(expression.Value(stream))
	if fromSeq > 0 {
		key = key.And(expression.Key("sequence").GreaterThanEqual(expression.Value(fromSeq)))
	}
	builder := expression.NewBuilder().WithKeyCondition(key)

	var filters []expression.ConditionBuilder
	if len(opts.Types) > 0 {
		values := make([]expression.OperandBuilder, len(opts.Types))
		for i, t := range opts.Types {
			values[i] = expression.Value(string(t))
		}
		filters = append(filters, expression.Name("type").In(values[0], values[1:]...))
	}
	if opts.FromTime > 0 {
		filters = append(filters, expression.Name("timestamp").GreaterThanEqual(expression.Value(opts.FromTime)))
	}
	if opts.ToTime > 0 {
		filters = append(filters, expression.Name("timestamp").LessThanEqual(expression.Value(opts.ToTime)))
	}
	switch len(filters) {
	case 0:
	case 1:
		builder = builder.WithFilter(filters[0])
	default:
		builder = builder.WithFilter(expression.And(filters[0], filters[1], filters[2:]...))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, err
	}

	return &dynamodb.QueryInput{
		TableName:                 aws.String(s.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ScanIndexForward:          aws.Bool(true),
	}, nil
}

func (s *EventStore) query(ctx context.Context, input *dynamodb.QueryInput) ([]event.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	var events []event.Event
	pages := dynamodb.NewQueryPaginator(s.api, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, s.wrapError(err)
		}
		for _, av := range page.Items {
			var item eventItem
			if err := attributevalue.UnmarshalMap(av, &item); err != nil {
				return nil, fmt.Errorf("dynamodb: decode event: %w", err)
			}
			events = append(events, fromItem(&item))
		}
	}
	return events, nil
}

func (s *EventStore) maxSequence(ctx context.Context, stream string) (uint64, error) {
	input, err := s.queryInput(stream, 0, event.QueryOptions{})
	if err != nil {
		return 0, err
	}
	input.ScanIndexForward = aws.Bool(false)
	input.Limit = aws.Int32(1)

	out, err := s.api.Query(ctx, input)
	if err != nil {
		return 0, s.wrapError(err)
	}
	if len(out.Items) == 0 {
		return 0, nil
	}

	var item eventItem
	if err := attributevalue.UnmarshalMap(out.Items[0], &item); err != nil {
		return 0, fmt.Errorf("dynamodb: decode event: %w", err)
	}
	return item.Sequence, nil
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

func toItem(e *event.Event) eventItem {
	return eventItem{
		Stream:    e.Stream,
		Sequence:  e.Sequence,
		ID:        e.ID,
		Type:      string(e.Type),
		Timestamp: e.Timestamp.UnixNano(),
		Payload:   e.Payload,
		Version:   e.Version,
	}
}

func fromItem(item *eventItem) event.Event {
	return event.Event{
		ID:        item.ID,
		Stream:    item.Stream,
		Type:      event.Type(item.Type),
		Timestamp: time.Unix(0, item.Timestamp).UTC(),
		Payload:   item.Payload,
		Sequence:  item.Sequence,
		Version:   item.Version,
	}
}

// wrapError wraps DynamoDB errors with domain errors.
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
