package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/duetto/pkg/duetto/deadletter"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
)

// DefaultTimeout bounds a single channel send when none is configured.
const DefaultTimeout = 15 * time.Second

// Result is the outcome of delivering one event to one channel.
type Result struct {
	Channel  string
	Phase    Phase
	Err      error
	Duration time.Duration
}

// OK reports whether the delivery succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Fanout delivers events to a fixed set of channels.
type Fanout struct {
	channels    []Channel
	concurrency int
	timeout     time.Duration
	logger      *slog.Logger
	metrics     observability.MetricsRecorder
	spans       observability.SpanManager
	deadLetters deadletter.Store
}

// Option configures a Fanout.
type Option func(*Fanout)

// WithConcurrency bounds how many channels run at once. Zero or less
// means no bound.
func WithConcurrency(n int) Option {
	return func(f *Fanout) { f.concurrency = n }
}

// WithTimeout sets the per-channel send timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fanout) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger for delivery failures.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fanout) { f.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(f *Fanout) {
		if m != nil {
			f.metrics = m
		}
	}
}

// WithSpanManager enables a delivery span per channel.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(f *Fanout) {
		if sm != nil {
			f.spans = sm
		}
	}
}

// WithDeadLetters records failed deliveries in store.
func WithDeadLetters(store deadletter.Store) Option {
	return func(f *Fanout) { f.deadLetters = store }
}

// NewFanout creates a fan-out over channels.
func NewFanout(channels []Channel, opts ...Option) *Fanout {
	f := &Fanout{
		channels: append([]Channel(nil), channels...),
		timeout:  DefaultTimeout,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Channels returns the channel names in delivery order.
func (f *Fanout) Channels() []string {
	names := make([]string, len(f.channels))
	for i, ch := range f.channels {
		names[i] = ch.Name()
	}
	return names
}

// Deliver formats and sends evt on every channel concurrently and waits
// for all of them. Results are in channel order. A failing or panicking
// channel never affects the others.
func (f *Fanout) Deliver(ctx context.Context, evt event.Event) []Result {
	results := make([]Result, len(f.channels))
	if len(f.channels) == 0 {
		return results
	}

	var g errgroup.Group
	if f.concurrency > 0 {
		g.SetLimit(f.concurrency)
	}
	for i, ch := range f.channels {
		g.Go(func() error {
			results[i] = f.deliverOne(ctx, ch, evt)
			return nil
		})
	}
	_ = g.Wait() // deliverOne never returns an error to the group

	return results
}

func (f *Fanout) deliverOne(ctx context.Context, ch Channel, evt event.Event) (res Result) {
	name := ch.Name()
	start := time.Now()
	res = Result{Channel: name, Phase: PhaseFormat}

	ctx, span := f.spans.StartDeliverySpan(ctx, name)
	var msg Message

	defer func() {
		if r := recover(); r != nil {
			res.Err = newPanicError(r)
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			res.Err = &Error{Channel: name, Phase: res.Phase, Err: res.Err}
			f.fail(ctx, evt, res, msg.Body)
		} else {
			observability.LogDelivered(f.logger, name, evt.ID, float64(res.Duration.Microseconds())/1000)
		}
		f.metrics.RecordDelivery(ctx, name, res.Duration, res.Err)
		f.spans.EndSpanWithError(span, res.Err)
	}()

	var err error
	if msg, err = ch.Format(evt); err != nil {
		res.Err = err
		return res
	}

	res.Phase = PhaseSend
	sendCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	res.Err = ch.Send(sendCtx, msg)
	return res
}

func (f *Fanout) fail(ctx context.Context, evt event.Event, res Result, body []byte) {
	observability.LogDeliveryError(f.logger, res.Channel, string(res.Phase), evt.ID, res.Err)
	if f.deadLetters == nil {
		return
	}
	entry := deadletter.Entry{
		EventID: evt.ID,
		Source:  evt.Source,
		Channel: res.Channel,
		Phase:   string(res.Phase),
		Error:   res.Err.Error(),
		Body:    body,
	}
	if err := f.deadLetters.Record(context.WithoutCancel(ctx), entry); err != nil && f.logger != nil {
		f.logger.Warn("dead-letter record failed",
			slog.String("channel", res.Channel),
			slog.String("event_id", evt.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Close closes every channel that implements io.Closer.
func (f *Fanout) Close() error {
	var errs []error
	for _, ch := range f.channels {
		if c, ok := ch.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Failed returns the failed results.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}
