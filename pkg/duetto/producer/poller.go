package producer

import (
	"context"
	"log/slog"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
)

// DefaultPollInterval is used when a poller is given no interval.
const DefaultPollInterval = time.Minute

// FetchFunc returns the events found by one poll, in emit order.
type FetchFunc func(ctx context.Context) ([]event.Event, error)

// Poller calls a fetch function on an interval and emits its results.
//
// A transient fetch error is logged and retried on the next tick. A
// permanent error fails the producer unless errors are tolerated.
type Poller struct {
	name     string
	interval time.Duration
	fetch    FetchFunc
	tolerate bool
	logger   *slog.Logger
}

var _ duetto.Producer = (*Poller)(nil)

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// TolerateErrors keeps the poller running after permanent fetch errors.
func TolerateErrors() PollerOption {
	return func(p *Poller) { p.tolerate = true }
}

// WithPollerLogger sets the logger for fetch errors.
func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

// NewPoller creates a poller that calls fetch every interval, starting
// immediately.
func NewPoller(name string, interval time.Duration, fetch FetchFunc, opts ...PollerOption) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	p := &Poller{name: name, interval: interval, fetch: fetch}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = observability.EnrichLogger(p.logger, "producer", name)
	return p
}

// Name returns the producer name.
func (p *Poller) Name() string { return p.name }

// Interval returns the poll interval.
func (p *Poller) Interval() time.Duration { return p.interval }

// Collect polls until ctx is cancelled or a permanent error occurs.
func (p *Poller) Collect(ctx context.Context, emit duetto.EmitFunc) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx, emit); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, emit duetto.EmitFunc) error {
	events, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.tolerate && !errors.IsRetryable(err) {
			return err
		}
		if p.logger != nil {
			p.logger.Warn("poll failed",
				slog.String("category", errors.Categorize(err).String()),
				slog.String("error", err.Error()),
			)
		}
	}
	for _, evt := range events {
		if err := emit(ctx, evt); err != nil {
			return err
		}
	}
	if p.logger != nil && len(events) > 0 {
		p.logger.Debug("poll emitted events",
			slog.Int("count", len(events)),
		)
	}
	return nil
}
