// Package subscriber keeps the set of live subscribers and broadcasts
// events to them.
//
// A subscriber is anything that can take an event, typically a websocket
// connection. Broadcast sends to every subscriber concurrently and removes
// any whose send fails, times out, or panics, so one slow or broken client
// never holds up the others.
package subscriber

import (
	"context"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Subscriber receives broadcast events. Send should honor ctx; a send that
// outlives ctx is treated as failed.
//
// If a Subscriber also implements io.Closer, the registry closes it when
// it is removed.
type Subscriber interface {
	Send(ctx context.Context, evt event.Event) error
}

// Func adapts a function to the Subscriber interface.
type Func func(ctx context.Context, evt event.Event) error

// Send calls f.
func (f Func) Send(ctx context.Context, evt event.Event) error {
	return f(ctx, evt)
}

// Handle identifies a registered subscriber.
type Handle string

// BroadcastResult reports which subscribers received an event.
type BroadcastResult struct {
	Delivered []Handle
	Failed    []Handle
}
