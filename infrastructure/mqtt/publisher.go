// Package mqtt publishes the toolchanger status and journal events to an
// MQTT broker. The status topic is retained so late subscribers see the
// current tool immediately.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/felixgeelhaar/toolchanger/domain/event"
	"github.com/felixgeelhaar/toolchanger/infrastructure/logging"
	"github.com/felixgeelhaar/toolchanger/infrastructure/resilience"
)

// Availability payloads.
const (
	Online  = "online"
	Offline = "offline"
)

// ErrNotConnected is returned when publishing without a client.
var ErrNotConnected = errors.New("mqtt: not connected")

// Config configures the broker connection.
type Config struct {
	Broker      string
	TopicPrefix string
	ClientID    string
	Username    string
	Password    string
	KeepAlive   time.Duration

	// ConnectTimeout bounds the wait for the first connection. The
	// connection manager keeps retrying in the background afterwards.
	ConnectTimeout time.Duration
}

// Client is the publishing side of an MQTT connection.
// *autopaho.ConnectionManager satisfies it.
type Client interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// StatusSource returns the current status snapshot to publish. It runs on the
// journal flush goroutine and on reconnect callbacks.
type StatusSource func() any

// Publisher publishes retained status and forwards journal events. It
// implements event.Sink.
type Publisher struct {
	cfg         Config
	toolchanger string
	client      Client
	cm          *autopaho.ConnectionManager
	exec        *resilience.Executor
	status      StatusSource
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithStatusSource republishes the retained status after every delivered
// event.
func WithStatusSource(src StatusSource) Option {
	return func(p *Publisher) {
		p.status = src
	}
}

// WithExecutor replaces the resilience executor guarding publishes.
func WithExecutor(e *resilience.Executor) Option {
	return func(p *Publisher) {
		p.exec = e
	}
}

// NewPublisher creates a publisher on an existing client.
func NewPublisher(client Client, cfg Config, toolchanger string, opts ...Option) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "toolchanger"
	}
	p := &Publisher{
		cfg:         cfg,
		toolchanger: toolchanger,
		client:      client,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.exec == nil {
		p.exec = resilience.NewDefaultExecutor()
	}
	return p
}

// Connect dials the broker with autopaho and returns a publisher on the
// managed connection. The will message marks the toolchanger offline.
func Connect(ctx context.Context, cfg Config, toolchanger string, opts ...Option) (*Publisher, error) {
	brokerURL, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	p := NewPublisher(nil, cfg, toolchanger, opts...)

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "toolchanger-" + toolchanger
	}
	keepAlive := cfg.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       uint16(keepAlive / time.Second), // #nosec G115 -- keep alive is seconds
		ConnectUsername: cfg.Username,
		ConnectPassword: []byte(cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.AvailabilityTopic(),
			Payload: []byte(Offline),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			logging.Info().
				Add(logging.Component("mqtt")).
				Add(logging.Str("broker", cfg.Broker)).
				Msg("connected to broker")
			p.publishAvailability(ctx, Online)
			p.publishStatus(ctx)
		},
		OnConnectError: func(err error) {
			logging.Warn().
				Add(logging.Component("mqtt")).
				Add(logging.ErrorField(err)).
				Msg("connection error")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: clientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm
	p.client = cm

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		logging.Warn().
			Add(logging.Component("mqtt")).
			Add(logging.ErrorField(err)).
			Msg("initial connection timed out, retrying in background")
	}

	return p, nil
}

func (p *Publisher) baseTopic() string {
	return p.cfg.TopicPrefix + "/" + p.toolchanger
}

// StatusTopic is the retained status topic.
func (p *Publisher) StatusTopic() string {
	return p.baseTopic() + "/status"
}

// AvailabilityTopic carries online/offline.
func (p *Publisher) AvailabilityTopic() string {
	return p.baseTopic() + "/availability"
}

// EventTopic carries journal events of type t.
func (p *Publisher) EventTopic(t event.Type) string {
	return p.baseTopic() + "/events/" + string(t)
}

// PublishStatus publishes status as retained JSON.
func (p *Publisher) PublishStatus(ctx context.Context, status any) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return p.publish(ctx, &paho.Publish{
		Topic:   p.StatusTopic(),
		Payload: payload,
		QoS:     1,
		Retain:  true,
	})
}

// Deliver forwards a journal event and refreshes the retained status.
func (p *Publisher) Deliver(ctx context.Context, e event.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	// A retry after a lost acknowledgement would deliver the event twice.
	if err := p.publishOnce(ctx, &paho.Publish{
		Topic:   p.EventTopic(e.Type),
		Payload: payload,
		QoS:     1,
	}); err != nil {
		return err
	}
	if p.status != nil {
		return p.PublishStatus(ctx, p.status())
	}
	return nil
}

// Close marks the toolchanger offline and disconnects.
func (p *Publisher) Close(ctx context.Context) error {
	p.publishAvailability(ctx, Offline)
	if p.cm == nil {
		return nil
	}
	return p.cm.Disconnect(ctx)
}

// publish sends a retained or otherwise idempotent message, retrying on
// failure.
func (p *Publisher) publish(ctx context.Context, msg *paho.Publish) error {
	if p.client == nil {
		return ErrNotConnected
	}
	return p.exec.Execute(ctx, p.send(msg))
}

// publishOnce sends msg without retrying.
func (p *Publisher) publishOnce(ctx context.Context, msg *paho.Publish) error {
	if p.client == nil {
		return ErrNotConnected
	}
	return p.exec.ExecuteOnce(ctx, p.send(msg))
}

func (p *Publisher) send(msg *paho.Publish) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := p.client.Publish(ctx, msg)
		return err
	}
}

func (p *Publisher) publishAvailability(ctx context.Context, status string) {
	err := p.publish(ctx, &paho.Publish{
		Topic:   p.AvailabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	})
	if err != nil {
		logging.Warn().
			Add(logging.Component("mqtt")).
			Add(logging.Str("availability", status)).
			Add(logging.ErrorField(err)).
			Msg("availability publish failed")
	}
}

func (p *Publisher) publishStatus(ctx context.Context) {
	if p.status == nil {
		return
	}
	if err := p.PublishStatus(ctx, p.status()); err != nil {
		logging.Warn().
			Add(logging.Component("mqtt")).
			Add(logging.ErrorField(err)).
			Msg("status publish failed")
	}
}

var _ event.Sink = (*Publisher)(nil)
