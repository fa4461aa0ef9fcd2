// Package mqtt publishes events to an MQTT broker.
//
// The topic is a template over event fields, for example
// "duetto/alerts/${source}/${priority}", so subscribers can filter with
// MQTT wildcards.
package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/template"
)

// DefaultTopic is used when no topic template is configured.
const DefaultTopic = "duetto/alerts/${source}/${priority}"

// DefaultPublishTimeout bounds how long Send waits for the broker.
const DefaultPublishTimeout = 5 * time.Second

// Publisher is the subset of the paho client the channel uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Disconnect(quiesce uint)
}

// Channel publishes events to MQTT topics.
type Channel struct {
	name     string
	client   Publisher
	topic    string
	qos      byte
	retained bool
	timeout  time.Duration
	codec    event.Codec
	expander *template.Expander
}

var _ delivery.Channel = (*Channel)(nil)

// Option configures a Channel.
type Option func(*Channel)

// WithTopic sets the topic template.
func WithTopic(topic string) Option {
	return func(c *Channel) {
		if topic != "" {
			c.topic = topic
		}
	}
}

// WithQoS sets the publish QoS (0, 1 or 2).
func WithQoS(qos byte) Option {
	return func(c *Channel) { c.qos = qos }
}

// WithRetained marks published messages as retained.
func WithRetained(retained bool) Option {
	return func(c *Channel) { c.retained = retained }
}

// WithPublishTimeout bounds how long Send waits for the publish token.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCodec sets the payload encoding (default: JSON).
func WithCodec(codec event.Codec) Option {
	return func(c *Channel) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// New creates a channel over a connected client. The channel disconnects
// the client on Close.
func New(name string, client Publisher, opts ...Option) (*Channel, error) {
	c := &Channel{
		name:     name,
		client:   client,
		topic:    DefaultTopic,
		timeout:  DefaultPublishTimeout,
		codec:    event.JSONCodec{},
		expander: template.NewExpander(template.WithMissingAction(template.MissingEmpty)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if client == nil {
		return nil, &errors.ValidationError{Field: "client", Message: "mqtt client is required"}
	}
	if c.qos > 2 {
		return nil, &errors.ValidationError{Field: "qos", Message: fmt.Sprintf("qos must be 0, 1 or 2, got %d", c.qos)}
	}
	return c, nil
}

// Connect dials broker with automatic reconnection and waits up to
// timeout for the first connection.
func Connect(broker, clientID, username, password string, timeout time.Duration) (pahomqtt.Client, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	if username != "" {
		opts.SetUsername(username)
		opts.SetPassword(password)
	}
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return nil, &errors.TimeoutError{Op: "mqtt connect " + broker, Timeout: timeout}
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", broker, err)
	}
	return client, nil
}

// FromConfig connects and builds a channel from component options:
//
//	broker      tcp://host:1883 (required)
//	client_id   default "duetto-<name>"
//	username, password
//	topic       topic template
//	qos, retained, timeout, codec
func FromConfig(name string, opts config.Config) (*Channel, error) {
	broker := opts.String("broker", "")
	if broker == "" {
		return nil, &errors.ValidationError{Field: "broker", Message: "mqtt broker is required"}
	}
	codec, err := event.CodecByName(opts.String("codec", "json"))
	if err != nil {
		return nil, err
	}
	qos := opts.Int("qos", 0)
	if qos < 0 || qos > 2 {
		return nil, &errors.ValidationError{Field: "qos", Message: fmt.Sprintf("qos must be 0, 1 or 2, got %d", qos)}
	}

	timeout := opts.Duration("timeout", DefaultPublishTimeout)
	client, err := Connect(broker,
		opts.String("client_id", "duetto-"+name),
		opts.String("username", ""),
		opts.String("password", ""),
		timeout,
	)
	if err != nil {
		return nil, err
	}
	return New(name, client,
		WithTopic(opts.String("topic", DefaultTopic)),
		WithQoS(byte(qos)),
		WithRetained(opts.Bool("retained", false)),
		WithPublishTimeout(timeout),
		WithCodec(codec),
	)
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Format encodes evt and resolves its topic.
func (c *Channel) Format(evt event.Event) (delivery.Message, error) {
	topic, err := c.expander.Expand(c.topic, evt.Fields())
	if err != nil {
		return delivery.Message{}, fmt.Errorf("expand topic: %w", err)
	}
	msg, err := delivery.EncodedMessage(c.codec, evt)
	if err != nil {
		return delivery.Message{}, err
	}
	msg.Destination = topic
	return msg, nil
}

// Send publishes msg and waits for the broker to acknowledge it. A publish
// that is not acknowledged in time fails with *errors.TimeoutError.
func (c *Channel) Send(ctx context.Context, msg delivery.Message) error {
	token := c.client.Publish(msg.Destination, c.qos, c.retained, msg.Body)

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return &errors.TimeoutError{Op: "mqtt publish " + msg.Destination, Timeout: c.timeout}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", msg.Destination, err)
	}
	return nil
}

// Close disconnects the client.
func (c *Channel) Close() error {
	c.client.Disconnect(250)
	return nil
}
