// Package redis delivers events to Redis, either as PUBLISH messages on a
// pub/sub channel or as entries appended to a stream.
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Mode selects how messages are written.
type Mode string

// Delivery modes.
const (
	ModePubSub Mode = "pubsub"
	ModeStream Mode = "stream"
)

// DefaultStreamMaxLen trims streams when no max_len is configured.
const DefaultStreamMaxLen = 10000

// Channel writes encoded events to Redis.
type Channel struct {
	name   string
	client goredis.UniversalClient
	owned  bool
	mode   Mode
	target string
	maxLen int64
	codec  event.Codec
}

var _ delivery.Channel = (*Channel)(nil)

// Option configures a Channel.
type Option func(*Channel)

// WithMode sets the delivery mode (default: pubsub).
func WithMode(m Mode) Option {
	return func(c *Channel) { c.mode = m }
}

// WithMaxLen sets the approximate stream length kept in stream mode.
func WithMaxLen(n int64) Option {
	return func(c *Channel) { c.maxLen = n }
}

// WithCodec sets the event encoding (default: JSON).
func WithCodec(codec event.Codec) Option {
	return func(c *Channel) {
		if codec != nil {
			c.codec = codec
		}
	}
}

// New creates a channel that writes to target, a pub/sub channel name or
// a stream key depending on the mode. The caller keeps ownership of client.
func New(name string, client goredis.UniversalClient, target string, opts ...Option) (*Channel, error) {
	c := &Channel{
		name:   name,
		client: client,
		mode:   ModePubSub,
		target: target,
		maxLen: DefaultStreamMaxLen,
		codec:  event.JSONCodec{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if client == nil {
		return nil, &errors.ValidationError{Field: "client", Message: "redis client is required"}
	}
	if target == "" {
		return nil, &errors.ValidationError{Field: "channel", Message: "redis channel or stream is required"}
	}
	if c.mode != ModePubSub && c.mode != ModeStream {
		return nil, &errors.ValidationError{Field: "mode", Message: fmt.Sprintf("unknown redis mode %q", c.mode)}
	}
	return c, nil
}

// FromConfig builds a channel and its client from component options:
//
//	url       redis://host:6379/0 (required)
//	mode      pubsub | stream
//	channel   pub/sub channel or stream key (required)
//	max_len   approximate stream length
//	codec     json | msgpack
func FromConfig(name string, opts config.Config) (*Channel, error) {
	url := opts.String("url", "")
	if url == "" {
		return nil, &errors.ValidationError{Field: "url", Message: "redis url is required"}
	}
	redisOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	codec, err := event.CodecByName(opts.String("codec", "json"))
	if err != nil {
		return nil, err
	}

	client := goredis.NewClient(redisOpts)
	c, err := New(name, client, opts.String("channel", ""),
		WithMode(Mode(opts.String("mode", string(ModePubSub)))),
		WithMaxLen(int64(opts.Int("max_len", DefaultStreamMaxLen))),
		WithCodec(codec),
	)
	if err != nil {
		client.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Format encodes evt with the channel codec.
func (c *Channel) Format(evt event.Event) (delivery.Message, error) {
	msg, err := delivery.EncodedMessage(c.codec, evt)
	if err != nil {
		return delivery.Message{}, err
	}
	msg.Headers = map[string]string{"id": evt.ID}
	return msg, nil
}

// Send publishes or appends msg. Destination overrides the target.
func (c *Channel) Send(ctx context.Context, msg delivery.Message) error {
	target := c.target
	if msg.Destination != "" {
		target = msg.Destination
	}

	switch c.mode {
	case ModeStream:
		values := map[string]any{
			"event":        msg.Body,
			"content_type": msg.ContentType,
			"source":       msg.Key,
		}
		if id, ok := msg.Headers["id"]; ok {
			values["id"] = id
		}
		args := &goredis.XAddArgs{
			Stream: target,
			MaxLen: c.maxLen,
			Approx: true,
			Values: values,
		}
		if err := c.client.XAdd(ctx, args).Err(); err != nil {
			return fmt.Errorf("xadd %s: %w", target, err)
		}
	default:
		if err := c.client.Publish(ctx, target, msg.Body).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", target, err)
		}
	}
	return nil
}

// Close closes the client if the channel created it.
func (c *Channel) Close() error {
	if !c.owned {
		return nil
	}
	return c.client.Close()
}
