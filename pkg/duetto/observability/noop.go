package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordIngest(context.Context, string) {}
func (NoopMetrics) RecordChainRun(context.Context, bool, string, time.Duration) {}
func (NoopMetrics) RecordStage(context.Context, string, time.Duration, error) {}
func (NoopMetrics) RecordDelivery(context.Context, string, time.Duration, error) {}
func (NoopMetrics) RecordBroadcast(context.Context, int, int) {}
func (NoopMetrics) RecordSubscribers(context.Context, int) {}
func (NoopMetrics) RecordProducerExit(context.Context, string, string) {}

// Multi fans every call out to each recorder in order.
type Multi []MetricsRecorder

var _ MetricsRecorder = Multi(nil)

func (m Multi) RecordIngest(ctx context.Context, producer string) {
	for _, r := range m {
		r.RecordIngest(ctx, producer)
	}
}

func (m Multi) RecordChainRun(ctx context.Context, passed bool, droppedBy string, d time.Duration) {
	for _, r := range m {
		r.RecordChainRun(ctx, passed, droppedBy, d)
	}
}

func (m Multi) RecordStage(ctx context.Context, stage string, d time.Duration, err error) {
	for _, r := range m {
		r.RecordStage(ctx, stage, d, err)
	}
}

func (m Multi) RecordDelivery(ctx context.Context, channel string, d time.Duration, err error) {
	for _, r := range m {
		r.RecordDelivery(ctx, channel, d, err)
	}
}

func (m Multi) RecordBroadcast(ctx context.Context, delivered, failed int) {
	for _, r := range m {
		r.RecordBroadcast(ctx, delivered, failed)
	}
}

func (m Multi) RecordSubscribers(ctx context.Context, delta int) {
	for _, r := range m {
		r.RecordSubscribers(ctx, delta)
	}
}

func (m Multi) RecordProducerExit(ctx context.Context, producer, state string) {
	for _, r := range m {
		r.RecordProducerExit(ctx, producer, state)
	}
}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartEventSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartEventSpan(ctx context.Context, _, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartStageSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartStageSpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartDeliverySpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDeliverySpan(ctx context.Context, _ string) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(trace.Span, error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(context.Context, string, ...attribute.KeyValue) {}
