package chain

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
)

// Middleware wraps a Stage. The wrapper must keep the stage's Name.
type Middleware func(Stage) Stage

// wrap builds a Stage that keeps next's name and runs fn.
func wrap(next Stage, fn StageFunc) Stage {
	return funcStage{name: next.Name(), fn: fn}
}

// Recover turns a stage panic into a *PanicError.
func Recover() Middleware {
	return func(next Stage) Stage {
		return wrap(next, func(ctx context.Context, evt event.Event) (out Outcome, err error) {
			defer func() {
				if r := recover(); r != nil {
					out = Drop("panic")
					err = &PanicError{Value: r, Stack: string(debug.Stack())}
				}
			}()
			return next.Process(ctx, evt)
		})
	}
}

// Instrument records stage latency and errors, and runs the stage inside a
// child span.
func Instrument(metrics observability.MetricsRecorder, spans observability.SpanManager) Middleware {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if spans == nil {
		spans = observability.NoopSpanManager{}
	}
	return func(next Stage) Stage {
		name := next.Name()
		return wrap(next, func(ctx context.Context, evt event.Event) (Outcome, error) {
			ctx, span := spans.StartStageSpan(ctx, name)
			start := time.Now()

			out, err := next.Process(ctx, evt)

			metrics.RecordStage(ctx, name, time.Since(start), err)
			if err == nil && out.Dropped() {
				spans.AddSpanEvent(ctx, "dropped", attribute.String("reason", out.Reason()))
			}
			spans.EndSpanWithError(span, err)
			return out, err
		})
	}
}

// Log logs drops at debug level and errors at warn level.
func Log(logger *slog.Logger) Middleware {
	return func(next Stage) Stage {
		if logger == nil {
			return next
		}
		name := next.Name()
		return wrap(next, func(ctx context.Context, evt event.Event) (Outcome, error) {
			out, err := next.Process(ctx, evt)
			switch {
			case err != nil:
				observability.LogStageError(logger, name, evt.ID, err)
			case out.Dropped():
				observability.LogDropped(logger, name, evt.ID, out.Reason())
			}
			return out, err
		})
	}
}
