// Package setup assembles a running duetto application from Settings.
//
// Component declarations name a registered kind; Build looks each kind up
// in the registries, constructs it with the declared options, and wires
// the engine, subscriber registry, delivery fan-out, dead-letter store and
// metrics backend together. An unknown kind is a startup error.
package setup

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/deadletter"
	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	duettoerrors "github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
	"github.com/randalmurphal/duetto/pkg/duetto/producer"
	"github.com/randalmurphal/duetto/pkg/duetto/subscriber"
)

// DefaultPushProducer names the push producer added when none is declared.
const DefaultPushProducer = "http"

// App is a fully wired engine and the components around it.
type App struct {
	Settings    *config.Settings
	Engine      *duetto.Engine
	Push        *producer.Push
	Recent      *subscriber.Recent
	Subscribers *subscriber.Registry
	Fanout      *delivery.Fanout
	DeadLetters deadletter.Store
	Metrics     observability.MetricsRecorder

	// Gatherer is set when the Prometheus backend is selected.
	Gatherer prometheus.Gatherer

	closers []io.Closer
}

// Build wires an App from settings using the built-in registries.
func Build(s *config.Settings, logger *slog.Logger) (*App, error) {
	regs, err := DefaultRegistries()
	if err != nil {
		return nil, err
	}
	return BuildWith(s, logger, regs)
}

// BuildWith wires an App using the given registries. On error every
// component built so far is closed.
func BuildWith(s *config.Settings, logger *slog.Logger, regs *Registries) (_ *App, err error) {
	if s == nil {
		return nil, errors.New("setup: settings are required")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	app := &App{Settings: s}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	var spans observability.SpanManager = observability.NoopSpanManager{}
	if s.Metrics.Tracing {
		spans = observability.NewSpanManager()
	}
	app.Metrics, app.Gatherer = buildMetrics(s.Metrics.Backend)

	if app.DeadLetters, err = buildDeadLetters(s.DeadLetter); err != nil {
		return nil, err
	}
	app.closers = append(app.closers, app.DeadLetters)

	stageList := s.Stages
	if len(stageList) == 0 {
		stageList = config.DefaultStages
	}
	var stages []chain.Stage
	for _, c := range stageList {
		factory, ok := regs.Stages.Lookup(c.Kind)
		if !ok {
			return nil, fmt.Errorf("stage %s: unknown kind %q", c.DisplayName(), c.Kind)
		}
		opts, err := componentConfig(c)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", c.DisplayName(), err)
		}
		st, err := factory(c.DisplayName(), opts)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", c.DisplayName(), err)
		}
		stages = append(stages, st)
	}
	pipeline, err := chain.New(stages,
		chain.WithLogger(logger),
		chain.WithMetrics(app.Metrics),
		chain.WithSpanManager(spans),
	)
	if err != nil {
		return nil, err
	}

	var channels []delivery.Channel
	for _, c := range s.Channels {
		factory, ok := regs.Channels.Lookup(c.Kind)
		if !ok {
			return nil, fmt.Errorf("channel %s: unknown kind %q", c.DisplayName(), c.Kind)
		}
		opts, err := componentConfig(c)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", c.DisplayName(), err)
		}
		ch, err := factory(c.DisplayName(), opts, logger)
		if err != nil {
			return nil, fmt.Errorf("channel %s: %w", c.DisplayName(), err)
		}
		if opts.Has("retry") {
			ch = delivery.WithRetry(ch, retryPolicy(opts.Sub("retry")))
		}
		if closer, ok := ch.(io.Closer); ok {
			app.closers = append(app.closers, closer)
		}
		channels = append(channels, ch)
	}
	app.Fanout = delivery.NewFanout(channels,
		delivery.WithConcurrency(s.Delivery.Concurrency),
		delivery.WithTimeout(s.Delivery.Timeout),
		delivery.WithLogger(logger),
		delivery.WithMetrics(app.Metrics),
		delivery.WithSpanManager(spans),
		delivery.WithDeadLetters(app.DeadLetters),
	)

	var producers []duetto.Producer
	for _, c := range s.Producers {
		factory, ok := regs.Producers.Lookup(c.Kind)
		if !ok {
			return nil, fmt.Errorf("producer %s: unknown kind %q", c.DisplayName(), c.Kind)
		}
		opts, err := componentConfig(c)
		if err != nil {
			return nil, fmt.Errorf("producer %s: %w", c.DisplayName(), err)
		}
		p, err := factory(c.DisplayName(), opts, logger)
		if err != nil {
			return nil, fmt.Errorf("producer %s: %w", c.DisplayName(), err)
		}
		if push, ok := p.(*producer.Push); ok && app.Push == nil {
			app.Push = push
		}
		producers = append(producers, p)
	}
	if app.Push == nil {
		app.Push = producer.NewPush(DefaultPushProducer)
		producers = append(producers, app.Push)
	}

	app.Recent = subscriber.NewRecent(s.Recent.Capacity)
	app.Subscribers = subscriber.NewRegistry(
		subscriber.WithSendTimeout(s.Subscribers.SendTimeout),
		subscriber.WithLogger(logger),
		subscriber.WithMetrics(app.Metrics),
	)
	app.Subscribers.Add(app.Recent)
	app.closers = append(app.closers, app.Subscribers)

	app.Engine = duetto.New(producers, pipeline,
		duetto.WithSubscribers(app.Subscribers),
		duetto.WithFanout(app.Fanout),
		duetto.WithLogger(logger),
		duetto.WithMetrics(app.Metrics),
		duetto.WithSpanManager(spans),
		duetto.WithGracePeriod(s.Engine.GracePeriod),
		duetto.WithDrainTimeout(s.Engine.DrainTimeout),
	)
	return app, nil
}

// Close releases channels, subscribers and the dead-letter store. Stop the
// engine first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildMetrics(backend string) (observability.MetricsRecorder, prometheus.Gatherer) {
	switch backend {
	case "prometheus":
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return observability.NewPrometheusMetrics(reg), reg
	case "otel":
		return observability.NewMetricsRecorder(), nil
	default:
		return observability.NoopMetrics{}, nil
	}
}

func buildDeadLetters(s config.DeadLetter) (deadletter.Store, error) {
	switch s.Driver {
	case "sqlite":
		store, err := deadletter.NewSQLiteStore(s.Path, s.MaxSize)
		if err != nil {
			return nil, fmt.Errorf("dead letter store: %w", err)
		}
		return store, nil
	default:
		return deadletter.NewMemoryStore(s.MaxSize), nil
	}
}

// retryPolicy reads max_attempts, initial_backoff, max_backoff and jitter
// over the defaults.
func retryPolicy(opts config.Config) duettoerrors.Policy {
	def := duettoerrors.DefaultPolicy
	return duettoerrors.NewPolicy(
		duettoerrors.WithMaxAttempts(opts.Int("max_attempts", def.MaxAttempts)),
		duettoerrors.WithBackoff(
			opts.Duration("initial_backoff", def.InitialBackoff),
			opts.Duration("max_backoff", def.MaxBackoff),
		),
		duettoerrors.WithJitter(opts.Float("jitter", def.Jitter)),
	)
}
