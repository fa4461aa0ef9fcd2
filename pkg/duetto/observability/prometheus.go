package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics records engine metrics as Prometheus collectors.
type PrometheusMetrics struct {
	Ingested        *prometheus.CounterVec
	ChainRuns       *prometheus.CounterVec
	ChainLatency    prometheus.Histogram
	StageLatency    *prometheus.HistogramVec
	StageErrors     *prometheus.CounterVec
	DeliveryLatency *prometheus.HistogramVec
	DeliveryErrors  *prometheus.CounterVec
	BroadcastSends  *prometheus.CounterVec
	Subscribers     prometheus.Gauge
	ProducerExits   *prometheus.CounterVec
}

var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers duetto collectors with reg. A nil reg uses
// the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	latencyBuckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

	return &PrometheusMetrics{
		Ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "duetto_events_ingested_total",
			Help: "Events accepted from producers",
		}, []string{"producer"}),

		ChainRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "duetto_chain_runs_total",
			Help: "Processing chain runs by outcome",
		}, []string{"outcome", "dropped_by"}),

		ChainLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "duetto_chain_duration_seconds",
			Help:    "Processing chain duration",
			Buckets: latencyBuckets,
		}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "duetto_stage_duration_seconds",
			Help:    "Stage duration by stage",
			Buckets: latencyBuckets,
		}, []string{"stage"}),

		StageErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "duetto_stage_errors_total",
			Help: "Stage failures by stage",
		}, []string{"stage"}),

		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "duetto_delivery_duration_seconds",
			Help:    "Channel delivery duration by channel",
			Buckets: latencyBuckets,
		}, []string{"channel"}),

		DeliveryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "duetto_delivery_errors_total",
			Help: "Channel delivery failures by channel",
		}, []string{"channel"}),

		BroadcastSends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "duetto_broadcast_sends_total",
			Help: "Subscriber sends by result",
		}, []string{"result"}),

		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "duetto_subscribers",
			Help: "Connected subscribers",
		}),

		ProducerExits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "duetto_producer_exits_total",
			Help: "Producers reaching a terminal state",
		}, []string{"producer", "state"}),
	}
}

// RecordIngest counts an accepted event.
func (m *PrometheusMetrics) RecordIngest(_ context.Context, producer string) {
	if m != nil {
		m.Ingested.WithLabelValues(producer).Inc()
	}
}

// RecordChainRun records a chain outcome and its duration.
func (m *PrometheusMetrics) RecordChainRun(_ context.Context, passed bool, droppedBy string, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "passed"
	if !passed {
		outcome = "dropped"
	}
	m.ChainRuns.WithLabelValues(outcome, droppedBy).Inc()
	m.ChainLatency.Observe(duration.Seconds())
}

// RecordStage records a stage duration and failure.
func (m *PrometheusMetrics) RecordStage(_ context.Context, stage string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(duration.Seconds())
	if err != nil {
		m.StageErrors.WithLabelValues(stage).Inc()
	}
}

// RecordDelivery records a channel delivery.
func (m *PrometheusMetrics) RecordDelivery(_ context.Context, channel string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.DeliveryLatency.WithLabelValues(channel).Observe(duration.Seconds())
	if err != nil {
		m.DeliveryErrors.WithLabelValues(channel).Inc()
	}
}

// RecordBroadcast records subscriber send results.
func (m *PrometheusMetrics) RecordBroadcast(_ context.Context, delivered, failed int) {
	if m == nil {
		return
	}
	m.BroadcastSends.WithLabelValues("delivered").Add(float64(delivered))
	m.BroadcastSends.WithLabelValues("failed").Add(float64(failed))
}

// RecordSubscribers adjusts the subscriber gauge.
func (m *PrometheusMetrics) RecordSubscribers(_ context.Context, delta int) {
	if m != nil {
		m.Subscribers.Add(float64(delta))
	}
}

// RecordProducerExit counts a producer reaching a terminal state.
func (m *PrometheusMetrics) RecordProducerExit(_ context.Context, producer string, state string) {
	if m != nil {
		m.ProducerExits.WithLabelValues(producer, state).Inc()
	}
}
