// Package observability provides structured logging helpers, metrics, and
// tracing for duetto.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// Every helper accepts a nil logger and does nothing with it, so components
// can run without logging configured.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger returns a logger carrying a component name and identity,
// e.g. EnrichLogger(l, "producer", "sec-edgar").
func EnrichLogger(logger *slog.Logger, component, name string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(slog.String(component, name))
}

// LogProducerStart logs a producer unit starting.
func LogProducerStart(logger *slog.Logger, producer string) {
	if logger == nil {
		return
	}
	logger.Info("producer starting",
		slog.String("producer", producer),
	)
}

// LogProducerExit logs a producer unit finishing. A non-nil err means the
// producer failed.
func LogProducerExit(logger *slog.Logger, producer string, state string, emitted uint64, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Error("producer failed",
			slog.String("producer", producer),
			slog.String("state", state),
			slog.Uint64("emitted", emitted),
			slog.String("error", err.Error()),
		)
		return
	}
	logger.Info("producer stopped",
		slog.String("producer", producer),
		slog.String("state", state),
		slog.Uint64("emitted", emitted),
	)
}

// LogStageError logs a stage failing for one event.
func LogStageError(logger *slog.Logger, stage, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("stage failed",
		slog.String("stage", stage),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogDropped logs an event dropped by a stage.
func LogDropped(logger *slog.Logger, stage, eventID, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("event dropped",
		slog.String("stage", stage),
		slog.String("event_id", eventID),
		slog.String("reason", reason),
	)
}

// LogDelivered logs a successful channel send.
func LogDelivered(logger *slog.Logger, channel, eventID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("event delivered",
		slog.String("channel", channel),
		slog.String("event_id", eventID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogDeliveryError logs a channel failing for one event.
func LogDeliveryError(logger *slog.Logger, channel, phase, eventID string, err error) {
	if logger == nil {
		return
	}
	logger.Error("delivery failed",
		slog.String("channel", channel),
		slog.String("phase", phase),
		slog.String("event_id", eventID),
		slog.String("error", err.Error()),
	)
}

// LogSubscriberRemoved logs a subscriber dropped after a failed send.
func LogSubscriberRemoved(logger *slog.Logger, handle string, err error) {
	if logger == nil {
		return
	}
	logger.Warn("subscriber removed",
		slog.String("subscriber", handle),
		slog.String("error", err.Error()),
	)
}

// LogShutdown logs the end of an engine shutdown.
func LogShutdown(logger *slog.Logger, durationMs float64, abandoned []string) {
	if logger == nil {
		return
	}
	if len(abandoned) > 0 {
		logger.Warn("engine stopped with abandoned producers",
			slog.Float64("duration_ms", durationMs),
			slog.Any("abandoned", abandoned),
		)
		return
	}
	logger.Info("engine stopped",
		slog.Float64("duration_ms", durationMs),
	)
}

// TimedOperation measures the duration of an operation.
// The returned function reports elapsed milliseconds.
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
