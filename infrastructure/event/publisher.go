// Package event provides journal publishing with buffering and sink fan-out.
package event

import (
	"context"
	"sync"
	"time"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
)

// Publisher publishes events to a journal store and forwards them to sinks.
type Publisher struct {
	store         event.Store
	sinks         []event.Sink
	buffer        []event.Event
	bufSize       int
	flushInterval time.Duration
	closed        bool
	done          chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
}

// PublisherOption configures the publisher.
type PublisherOption func(*Publisher)

// WithBufferSize sets the event buffer size.
func WithBufferSize(size int) PublisherOption {
	return func(p *Publisher) {
		p.bufSize = size
	}
}

// WithFlushInterval flushes a partially filled buffer periodically.
func WithFlushInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.flushInterval = d
	}
}

// WithSink adds a sink that receives every event once it is stored.
func WithSink(s event.Sink) PublisherOption {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, s)
	}
}

// NewPublisher creates a new event publisher.
func NewPublisher(store event.Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		store: store,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize > 0 {
		p.buffer = make([]event.Event, 0, p.bufSize)
		if p.flushInterval > 0 {
			p.wg.Add(1)
			go p.flushLoop()
		}
	}
	return p
}

// AddSink registers s for events published from now on.
func (p *Publisher) AddSink(s event.Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Publish sends events to the journal.
func (p *Publisher) Publish(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return event.ErrPublisherClosed
	}

	if p.bufSize == 0 {
		return p.write(ctx, events)
	}

	p.buffer = append(p.buffer, events...)
	if len(p.buffer) >= p.bufSize {
		return p.flush(ctx)
	}
	return nil
}

// Flush writes all buffered events to the store.
func (p *Publisher) Flush(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flush(ctx)
}

// flush writes buffered events to the store (must hold lock).
func (p *Publisher) flush(ctx context.Context) error {
	if len(p.buffer) == 0 {
		return nil
	}

	if err := p.write(ctx, p.buffer); err != nil {
		return err
	}
	p.buffer = p.buffer[:0]
	return nil
}

func (p *Publisher) write(ctx context.Context, events []event.Event) error {
	if err := p.store.Append(ctx, events...); err != nil {
		return err
	}

	for _, sink := range p.sinks {
		for _, e := range events {
			if err := sink.Deliver(ctx, e); err != nil {
				logging.Warn().
					Add(logging.Component("publisher")).
					Add(logging.Str("event_type", string(e.Type))).
					Add(logging.ErrorField(err)).
					Msg("sink delivery failed")
			}
		}
	}
	return nil
}

func (p *Publisher) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.Flush(context.Background()); err != nil {
				logging.Warn().
					Add(logging.Component("publisher")).
					Add(logging.ErrorField(err)).
					Msg("periodic flush failed")
			}
		}
	}
}

// Close flushes remaining events and releases resources.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.done)
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flush(context.Background())
}

var _ event.Publisher = (*Publisher)(nil)
