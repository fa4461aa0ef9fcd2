// Package chain runs events through an ordered list of stages.
//
// A Chain is built once and reused for every event. Run is a fold: each
// stage receives the previous stage's output, and the first drop ends the
// run without invoking later stages.
//
//	c, err := chain.New([]chain.Stage{dedupStage, priorityStage},
//	    chain.WithLogger(logger),
//	    chain.WithMetrics(metrics),
//	)
//	out, err := c.Run(ctx, evt)
//	if evt, ok := out.Event(); ok {
//	    // deliver evt
//	}
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
)

// Chain is an immutable, ordered list of stages. It is safe for
// concurrent use when its stages are.
type Chain struct {
	stages  []Stage
	names   []string
	metrics observability.MetricsRecorder
}

// Option configures a Chain.
type Option func(*chainConfig)

type chainConfig struct {
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
	middleware []Middleware
}

// WithLogger logs stage drops and errors.
func WithLogger(logger *slog.Logger) Option {
	return func(c *chainConfig) {
		c.logger = logger
	}
}

// WithMetrics records chain and stage metrics.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(c *chainConfig) {
		c.metrics = m
	}
}

// WithSpanManager runs each stage inside a trace span.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(c *chainConfig) {
		c.spans = sm
	}
}

// WithMiddleware adds middleware around every stage. The first middleware
// is the outermost. User middleware wraps the built-in layers.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *chainConfig) {
		c.middleware = append(c.middleware, mw...)
	}
}

// New builds a chain from stages, wrapping each in middleware. The
// built-in layers, outermost first, are Instrument, Log, and Recover, so a
// recovered panic is still measured and logged.
func New(stages []Stage, opts ...Option) (*Chain, error) {
	cfg := chainConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = observability.NoopMetrics{}
	}

	layers := append([]Middleware(nil), cfg.middleware...)
	layers = append(layers, Instrument(cfg.metrics, cfg.spans), Log(cfg.logger), Recover())

	c := &Chain{
		stages:  make([]Stage, len(stages)),
		names:   make([]string, len(stages)),
		metrics: cfg.metrics,
	}
	for i, s := range stages {
		if s == nil {
			return nil, fmt.Errorf("stage %d: %w", i, ErrNilStage)
		}
		if s.Name() == "" {
			return nil, fmt.Errorf("stage %d: %w", i, ErrEmptyStageName)
		}
		wrapped := s
		for j := len(layers) - 1; j >= 0; j-- {
			wrapped = layers[j](wrapped)
		}
		c.stages[i] = wrapped
		c.names[i] = s.Name()
	}
	return c, nil
}

// MustNew is New that panics on error.
func MustNew(stages []Stage, opts ...Option) *Chain {
	c, err := New(stages, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Run folds evt through every stage. It stops at the first drop. A stage
// error drops the event and is returned as a *StageError alongside the
// dropped outcome.
func (c *Chain) Run(ctx context.Context, evt event.Event) (Outcome, error) {
	start := time.Now()
	out, err := c.run(ctx, evt)
	c.metrics.RecordChainRun(ctx, !out.Dropped(), out.DroppedBy(), time.Since(start))
	return out, err
}

func (c *Chain) run(ctx context.Context, evt event.Event) (Outcome, error) {
	cur := evt
	for i, s := range c.stages {
		name := c.names[i]
		if err := ctx.Err(); err != nil {
			return Drop("canceled").by(name), &StageError{Stage: name, EventID: cur.ID, Err: err}
		}

		out, err := s.Process(ctx, cur)
		if err != nil {
			return Drop(err.Error()).by(name), &StageError{Stage: name, EventID: cur.ID, Err: err}
		}
		if out.Dropped() {
			return out.by(name), nil
		}
		cur, _ = out.Event()
	}
	return Pass(cur), nil
}

// Stages returns the stage names in order.
func (c *Chain) Stages() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of stages.
func (c *Chain) Len() int {
	return len(c.stages)
}
