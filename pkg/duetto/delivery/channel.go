// Package delivery fans surviving events out to external channels.
//
// A Channel turns an event into a Message (Format) and hands it to its
// transport (Send). Fanout.Deliver runs every channel concurrently, each
// under its own timeout, and isolates their failures from one another.
// Failed deliveries are logged, counted, and optionally recorded in a
// dead-letter store.
package delivery

import (
	"context"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Channel is an external delivery target such as a webhook or a broker topic.
//
// Format must be pure. Send should honor ctx; the fan-out gives each send
// its own deadline.
type Channel interface {
	Name() string
	Format(evt event.Event) (Message, error)
	Send(ctx context.Context, msg Message) error
}

// Message is a formatted, transport-ready notification.
type Message struct {
	// Destination is a transport address: a URL, topic, or stream key.
	// Empty means the channel's configured default.
	Destination string

	// Key orders or partitions messages where the transport supports it.
	Key string

	ContentType string
	Body        []byte
	Headers     map[string]string
}

// Funcs builds a Channel from functions. It is handy for tests and for
// small adapters that need no state of their own.
type Funcs struct {
	ChannelName string
	FormatFunc  func(evt event.Event) (Message, error)
	SendFunc    func(ctx context.Context, msg Message) error
}

var _ Channel = Funcs{}

// Name returns ChannelName.
func (f Funcs) Name() string { return f.ChannelName }

// Format calls FormatFunc, or encodes the event as JSON when it is nil.
func (f Funcs) Format(evt event.Event) (Message, error) {
	if f.FormatFunc == nil {
		return JSONMessage(evt)
	}
	return f.FormatFunc(evt)
}

// Send calls SendFunc. A nil SendFunc discards the message.
func (f Funcs) Send(ctx context.Context, msg Message) error {
	if f.SendFunc == nil {
		return nil
	}
	return f.SendFunc(ctx, msg)
}

// EncodedMessage encodes evt with codec, keyed by source so that transports
// which partition by key keep each producer's events in order.
func EncodedMessage(codec event.Codec, evt event.Event) (Message, error) {
	body, err := codec.Marshal(evt)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Key:         evt.Source,
		ContentType: codec.ContentType(),
		Body:        body,
	}, nil
}

// JSONMessage encodes evt as JSON.
func JSONMessage(evt event.Event) (Message, error) {
	return EncodedMessage(event.JSONCodec{}, evt)
}
