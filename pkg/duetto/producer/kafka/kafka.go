// Package kafka consumes encoded events from a Kafka topic as a consumer
// group member.
//
// Offsets are committed after the engine has processed each event, so a
// restart resumes after the last fully handled message. Messages that fail
// to decode are logged, committed and skipped.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Reader is the subset of *kafka.Reader the producer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Producer emits events read from Kafka.
type Producer struct {
	name   string
	reader Reader
	codec  event.Codec
	logger *slog.Logger
}

var _ duetto.Producer = (*Producer)(nil)

// New creates a producer over reader. The producer owns the reader and
// closes it when Collect returns.
func New(name string, reader Reader, codec event.Codec, logger *slog.Logger) (*Producer, error) {
	if reader == nil {
		return nil, &errors.ValidationError{Field: "reader", Message: "kafka reader is required"}
	}
	if codec == nil {
		codec = event.JSONCodec{}
	}
	return &Producer{name: name, reader: reader, codec: codec, logger: logger}, nil
}

// NewReader returns a consumer group reader for topic.
func NewReader(brokers []string, groupID, topic string) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        time.Second,
		CommitInterval: 0,
		StartOffset:    kafkago.LastOffset,
	})
}

// FromConfig builds a producer from options:
//
//	brokers   list of host:port (required)
//	topic     (required)
//	group_id  consumer group (default "duetto")
//	codec     json | msgpack
func FromConfig(name string, opts config.Config, logger *slog.Logger) (*Producer, error) {
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
	return New(name, NewReader(brokers, opts.String("group_id", "duetto"), topic), codec, logger)
}

// Name returns the producer name.
func (p *Producer) Name() string { return p.name }

// Collect reads until ctx is cancelled or the reader fails.
func (p *Producer) Collect(ctx context.Context, emit duetto.EmitFunc) error {
	defer p.reader.Close()

	for {
		msg, err := p.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		evt, err := p.decode(msg)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("skipping undecodable message",
					slog.String("producer", p.name),
					slog.String("topic", msg.Topic),
					slog.Int("partition", msg.Partition),
					slog.Int64("offset", msg.Offset),
					slog.String("error", err.Error()),
				)
			}
		} else if err := emit(ctx, evt); err != nil {
			return err
		}

		if err := p.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// decode picks the codec from the content-type header when present.
func (p *Producer) decode(msg kafkago.Message) (event.Event, error) {
	codec := p.codec
	for _, h := range msg.Headers {
		if h.Key != "content-type" {
			continue
		}
		switch string(h.Value) {
		case event.JSONCodec{}.ContentType():
			codec = event.JSONCodec{}
		case event.MsgpackCodec{}.ContentType():
			codec = event.MsgpackCodec{}
		}
	}
	evt, err := codec.Unmarshal(msg.Value)
	if err != nil {
		return event.Event{}, err
	}
	evt = evt.Normalize()
	if err := evt.Validate(); err != nil {
		return event.Event{}, err
	}
	return evt, nil
}
