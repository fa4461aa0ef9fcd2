package duetto

import (
	"log/slog"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
	"github.com/randalmurphal/duetto/pkg/duetto/subscriber"
)

// Default shutdown timings.
const (
	DefaultGracePeriod  = 5 * time.Second
	DefaultDrainTimeout = 30 * time.Second
)

// Option configures an Engine.
type Option func(*Engine)

// WithSubscribers sets the registry that surviving events are broadcast to.
func WithSubscribers(r *subscriber.Registry) Option {
	return func(e *Engine) { e.subscribers = r }
}

// WithFanout sets the external delivery fan-out.
func WithFanout(f *delivery.Fanout) Option {
	return func(e *Engine) { e.fanout = f }
}

// WithLogger sets the logger for producer lifecycle and shutdown.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSpanManager enables one trace span per ingested event.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(e *Engine) {
		if sm != nil {
			e.spans = sm
		}
	}
}

// WithGracePeriod sets how long Stop waits for producers to exit.
// Default: 5s
func WithGracePeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.gracePeriod = d
		}
	}
}

// WithDrainTimeout sets how long Run lets in-flight work finish after the
// grace period.
// Default: 30s
func WithDrainTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.drainTimeout = d
		}
	}
}
