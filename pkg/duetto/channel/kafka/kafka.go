// Package kafka delivers encoded events to a Kafka topic.
//
// Messages are keyed by event source and written through a Hash balancer,
// so each producer's events land on one partition in order.
package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Writer is the subset of *kafka.Writer the channel uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Channel writes events to Kafka.
type Channel struct {
	name   string
	writer Writer
	codec  event.Codec
}

var _ delivery.Channel = (*Channel)(nil)

// New creates a channel over writer. The channel owns the writer and
// closes it on Close.
func New(name string, writer Writer, codec event.Codec) (*Channel, error) {
	if writer == nil {
		return nil, &errors.ValidationError{Field: "writer", Message: "kafka writer is required"}
	}
	if codec == nil {
		codec = event.JSONCodec{}
	}
	return &Channel{name: name, writer: writer, codec: codec}, nil
}

// NewWriter returns a synchronous writer for topic that partitions by key.
func NewWriter(brokers []string, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		MaxAttempts:            5,
		ReadTimeout:            10 * time.Second,
		WriteTimeout:           10 * time.Second,
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// FromConfig builds a channel from component options:
//
//	brokers   list of host:port (required)
//	topic     (required)
//	codec     json | msgpack
func FromConfig(name string, opts config.Config) (*Channel, error) {
	brokers := opts.StringSlice("brokers", nil)
	if len(brokers) == 0 {
		return nil, &errors.ValidationError{Field: "brokers", Message: "kafka brokers are required"}
	}
	topic := opts.String("topic", "")
	if topic == "" {
		return nil, &errors.ValidationError{Field: "topic", Message: "kafka topic is required"}
	}
	codec, err := event.CodecByName(opts.String("codec", "json"))
	if err != nil {
		return nil, err
	}
	return New(name, NewWriter(brokers, topic), codec)
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Format encodes evt, keyed by source.
func (c *Channel) Format(evt event.Event) (delivery.Message, error) {
	msg, err := delivery.EncodedMessage(c.codec, evt)
	if err != nil {
		return delivery.Message{}, err
	}
	msg.Headers = map[string]string{
		"content-type": msg.ContentType,
		"event-id":     evt.ID,
		"event-type":   string(evt.Type),
	}
	return msg, nil
}

// Send writes msg. A non-empty Destination overrides the writer's topic.
func (c *Channel) Send(ctx context.Context, msg delivery.Message) error {
	km := kafkago.Message{
		Topic: msg.Destination,
		Key:   []byte(msg.Key),
		Value: msg.Body,
	}
	for k, v := range msg.Headers {
		km.Headers = append(km.Headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	if err := c.writer.WriteMessages(ctx, km); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

// Close closes the writer.
func (c *Channel) Close() error {
	return c.writer.Close()
}
