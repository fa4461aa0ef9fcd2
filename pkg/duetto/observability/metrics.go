package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsRecorder records engine metrics.
// Use NewMetricsRecorder() for OTel, NewPrometheusMetrics for Prometheus,
// or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordIngest counts an event accepted from a producer.
	RecordIngest(ctx context.Context, producer string)

	// RecordChainRun records one chain run. droppedBy is empty when the
	// event passed.
	RecordChainRun(ctx context.Context, passed bool, droppedBy string, duration time.Duration)

	// RecordStage records a single stage invocation.
	RecordStage(ctx context.Context, stage string, duration time.Duration, err error)

	// RecordDelivery records one channel format+send.
	RecordDelivery(ctx context.Context, channel string, duration time.Duration, err error)

	// RecordBroadcast records the outcome of one broadcast.
	RecordBroadcast(ctx context.Context, delivered, failed int)

	// RecordSubscribers adjusts the live subscriber count.
	RecordSubscribers(ctx context.Context, delta int)

	// RecordProducerExit records a producer reaching a terminal state.
	RecordProducerExit(ctx context.Context, producer string, state string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	ingested       metric.Int64Counter
	chainRuns      metric.Int64Counter
	chainLatency   metric.Float64Histogram
	stageLatency   metric.Float64Histogram
	stageErrors    metric.Int64Counter
	deliveries     metric.Int64Counter
	deliveryErrors metric.Int64Counter
	deliveryLat    metric.Float64Histogram
	broadcasts     metric.Int64Counter
	subscribers    metric.Int64UpDownCounter
	producerExits  metric.Int64Counter
}

var _ MetricsRecorder = (*otelMetrics)(nil)

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics()
	})
	return defaultMetrics, defaultMetricsErr
}

func newOtelMetrics() (*otelMetrics, error) {
	meter := otel.Meter("duetto")
	m := &otelMetrics{}
	var err error

	if m.ingested, err = meter.Int64Counter("duetto.events.ingested",
		metric.WithDescription("Events accepted from producers"),
	); err != nil {
		return nil, err
	}
	if m.chainRuns, err = meter.Int64Counter("duetto.chain.runs",
		metric.WithDescription("Processing chain runs by outcome"),
	); err != nil {
		return nil, err
	}
	if m.chainLatency, err = meter.Float64Histogram("duetto.chain.latency_ms",
		metric.WithDescription("Processing chain latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.stageLatency, err = meter.Float64Histogram("duetto.stage.latency_ms",
		metric.WithDescription("Stage latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.stageErrors, err = meter.Int64Counter("duetto.stage.errors",
		metric.WithDescription("Stage failures"),
	); err != nil {
		return nil, err
	}
	if m.deliveries, err = meter.Int64Counter("duetto.delivery.attempts",
		metric.WithDescription("Channel deliveries attempted"),
	); err != nil {
		return nil, err
	}
	if m.deliveryErrors, err = meter.Int64Counter("duetto.delivery.errors",
		metric.WithDescription("Channel deliveries failed"),
	); err != nil {
		return nil, err
	}
	if m.deliveryLat, err = meter.Float64Histogram("duetto.delivery.latency_ms",
		metric.WithDescription("Channel delivery latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.broadcasts, err = meter.Int64Counter("duetto.broadcast.sends",
		metric.WithDescription("Subscriber sends by result"),
	); err != nil {
		return nil, err
	}
	if m.subscribers, err = meter.Int64UpDownCounter("duetto.subscribers.active",
		metric.WithDescription("Connected subscribers"),
	); err != nil {
		return nil, err
	}
	if m.producerExits, err = meter.Int64Counter("duetto.producer.exits",
		metric.WithDescription("Producers reaching a terminal state"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider; set it with
// otel.SetMeterProvider before calling.
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordIngest(ctx context.Context, producer string) {
	m.ingested.Add(ctx, 1, metric.WithAttributes(attribute.String("producer", producer)))
}

func (m *otelMetrics) RecordChainRun(ctx context.Context, passed bool, droppedBy string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.Bool("passed", passed),
		attribute.String("dropped_by", droppedBy),
	)
	m.chainRuns.Add(ctx, 1, attrs)
	m.chainLatency.Record(ctx, durationMs(duration), attrs)
}

func (m *otelMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("stage", stage))
	m.stageLatency.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.stageErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordDelivery(ctx context.Context, channel string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("channel", channel))
	m.deliveries.Add(ctx, 1, attrs)
	m.deliveryLat.Record(ctx, durationMs(duration), attrs)
	if err != nil {
		m.deliveryErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordBroadcast(ctx context.Context, delivered, failed int) {
	if delivered > 0 {
		m.broadcasts.Add(ctx, int64(delivered), metric.WithAttributes(attribute.String("result", "delivered")))
	}
	if failed > 0 {
		m.broadcasts.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("result", "failed")))
	}
}

func (m *otelMetrics) RecordSubscribers(ctx context.Context, delta int) {
	m.subscribers.Add(ctx, int64(delta))
}

func (m *otelMetrics) RecordProducerExit(ctx context.Context, producer string, state string) {
	m.producerExits.Add(ctx, 1, metric.WithAttributes(
		attribute.String("producer", producer),
		attribute.String("state", state),
	))
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
