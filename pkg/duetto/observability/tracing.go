package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanManager opens the spans that follow one event through the engine:
// a root span per event, then a child per stage and per channel delivery.
// Use NewSpanManager for OTel or NoopSpanManager{} when tracing is off.
type SpanManager interface {
	StartEventSpan(ctx context.Context, eventID, source string) (context.Context, trace.Span)
	StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span)
	StartDeliverySpan(ctx context.Context, channel string) (context.Context, trace.Span)

	// EndSpanWithError ends span, marking it failed when err is non-nil.
	EndSpanWithError(span trace.Span, err error)

	// AddSpanEvent annotates the recording span in ctx, if any.
	AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue)
}

const tracerName = "duetto"

type otelSpanManager struct {
	tracer trace.Tracer
}

// NewSpanManager returns a SpanManager on the global tracer provider, so
// otel.SetTracerProvider must run first.
func NewSpanManager() SpanManager {
	return &otelSpanManager{tracer: otel.Tracer(tracerName)}
}

func (m *otelSpanManager) start(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return m.tracer.Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

func (m *otelSpanManager) StartEventSpan(ctx context.Context, eventID, source string) (context.Context, trace.Span) {
	return m.start(ctx, tracerName+".event", trace.SpanKindInternal,
		attribute.String("event.id", eventID),
		attribute.String("event.source", source))
}

func (m *otelSpanManager) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return m.start(ctx, tracerName+".stage."+stage, trace.SpanKindInternal,
		attribute.String("stage", stage))
}

// Deliveries leave the process, hence SpanKindProducer.
func (m *otelSpanManager) StartDeliverySpan(ctx context.Context, channel string) (context.Context, trace.Span) {
	return m.start(ctx, tracerName+".deliver."+channel, trace.SpanKindProducer,
		attribute.String("channel", channel))
}

func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if span == nil {
		return
	}
	defer span.End()
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func (m *otelSpanManager) AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.AddEvent(name, trace.WithAttributes(attrs...))
	}
}
