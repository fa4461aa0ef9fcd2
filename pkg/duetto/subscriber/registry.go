package subscriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
)

// DefaultSendTimeout bounds a single subscriber send.
const DefaultSendTimeout = 5 * time.Second

// ErrSendTimeout is reported when a subscriber does not return before its
// send deadline.
var ErrSendTimeout = errors.New("subscriber send timed out")

// PanicError captures a recovered subscriber panic.
type PanicError struct {
	Value any
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("subscriber panicked: %v", e.Value)
}

type entry struct {
	sub Subscriber
	seq uint64
}

// Registry is a concurrency-safe set of subscribers.
type Registry struct {
	mu     sync.RWMutex
	subs   map[Handle]entry
	seq    uint64
	closed bool

	sendTimeout time.Duration
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
}

// Option configures a Registry.
type Option func(*Registry)

// WithSendTimeout bounds each subscriber send (default 5s).
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithLogger logs subscriber removals.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records broadcast outcomes and the live subscriber count.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		subs:        make(map[Handle]entry),
		sendTimeout: DefaultSendTimeout,
		metrics:     observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add registers sub and returns its handle. The subscriber receives events
// broadcast after Add returns; earlier events are not replayed. After
// Close, Add closes sub and returns an empty handle.
func (r *Registry) Add(sub Subscriber) Handle {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		closeSubscriber(sub)
		return ""
	}
	h := Handle(uuid.NewString())
	r.seq++
	r.subs[h] = entry{sub: sub, seq: r.seq}
	r.mu.Unlock()

	r.metrics.RecordSubscribers(context.Background(), 1)
	return h
}

// Remove unregisters h, closing the subscriber if it is an io.Closer.
// It reports whether h was registered; removing twice is harmless.
func (r *Registry) Remove(h Handle) bool {
	r.mu.Lock()
	e, ok := r.subs[h]
	if ok {
		delete(r.subs, h)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	closeSubscriber(e.sub)
	r.metrics.RecordSubscribers(context.Background(), -1)
	return true
}

// Len returns the number of live subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Handles returns the live handles in registration order.
func (r *Registry) Handles() []Handle {
	snap := r.snapshot()
	out := make([]Handle, len(snap))
	for i, s := range snap {
		out[i] = s.handle
	}
	return out
}

type member struct {
	handle Handle
	sub    Subscriber
}

func (r *Registry) snapshot() []member {
	r.mu.RLock()
	type ordered struct {
		member
		seq uint64
	}
	tmp := make([]ordered, 0, len(r.subs))
	for h, e := range r.subs {
		tmp = append(tmp, ordered{member{h, e.sub}, e.seq})
	}
	r.mu.RUnlock()

	slices.SortFunc(tmp, func(a, b ordered) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]member, len(tmp))
	for i, o := range tmp {
		out[i] = o.member
	}
	return out
}

// Broadcast sends evt to every subscriber registered at the time of the
// call, concurrently and each under the send timeout. Subscribers whose
// send fails are removed. No error or panic escapes.
func (r *Registry) Broadcast(ctx context.Context, evt event.Event) BroadcastResult {
	members := r.snapshot()
	if len(members) == 0 {
		return BroadcastResult{}
	}

	errs := make([]error, len(members))
	var wg sync.WaitGroup
	for i, m := range members {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = r.send(ctx, m.sub, evt)
		}()
	}
	wg.Wait()

	var res BroadcastResult
	for i, m := range members {
		if errs[i] == nil {
			res.Delivered = append(res.Delivered, m.handle)
			continue
		}
		res.Failed = append(res.Failed, m.handle)
		if r.Remove(m.handle) {
			observability.LogSubscriberRemoved(r.logger, string(m.handle), errs[i])
		}
	}
	r.metrics.RecordBroadcast(ctx, len(res.Delivered), len(res.Failed))
	return res
}

// send runs one Send under the timeout. A Send that ignores its context
// is abandoned when the deadline passes.
func (r *Registry) send(ctx context.Context, sub Subscriber, evt event.Event) error {
	sendCtx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if v := recover(); v != nil {
				done <- &PanicError{Value: v, Stack: string(debug.Stack())}
			}
		}()
		done <- sub.Send(sendCtx, evt)
	}()

	select {
	case err := <-done:
		return err
	case <-sendCtx.Done():
		if errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return ErrSendTimeout
		}
		return sendCtx.Err()
	}
}

// Close removes and closes every subscriber. Later Adds are rejected.
func (r *Registry) Close() error {
	r.mu.Lock()
	r.closed = true
	subs := r.subs
	r.subs = make(map[Handle]entry)
	r.mu.Unlock()

	var errs []error
	for _, e := range subs {
		if c, ok := e.sub.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if n := len(subs); n > 0 {
		r.metrics.RecordSubscribers(context.Background(), -n)
	}
	return errors.Join(errs...)
}

func closeSubscriber(sub Subscriber) {
	if c, ok := sub.(io.Closer); ok {
		_ = c.Close()
	}
}
