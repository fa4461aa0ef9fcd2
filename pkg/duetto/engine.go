package duetto

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
	"github.com/randalmurphal/duetto/pkg/duetto/subscriber"
)

// submission is one emitted event waiting for the dispatcher. done is
// closed once the event has been fully processed.
type submission struct {
	unit *unit
	evt  event.Event
	done chan struct{}
}

// Engine runs producers and drives their events through the chain,
// the subscriber broadcast and the delivery fan-out.
type Engine struct {
	units        []*unit
	chain        *chain.Chain
	subscribers  *subscriber.Registry
	fanout       *delivery.Fanout
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager
	gracePeriod  time.Duration
	drainTimeout time.Duration

	mu      sync.Mutex
	started bool
	stopped bool

	prodCancel context.CancelFunc
	workCtx    context.Context
	workCancel context.CancelFunc

	// ingestMu guards sends on ingest against its close.
	ingestMu sync.RWMutex
	closed   bool
	ingest   chan submission

	producers      sync.WaitGroup
	inflight       sync.WaitGroup
	dispatcherDone chan struct{}
	done           chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// New creates an engine over producers and chain. Configuration errors
// are reported by Start.
func New(producers []Producer, c *chain.Chain, opts ...Option) *Engine {
	e := &Engine{
		chain:        c,
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
		gracePeriod:  DefaultGracePeriod,
		drainTimeout: DefaultDrainTimeout,
		done:         make(chan struct{}),
	}
	for _, p := range producers {
		u := &unit{producer: p, slot: make(chan struct{}, 1)}
		if p != nil {
			u.name = p.Name()
		}
		e.units = append(e.units, u)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) validate() error {
	if e.chain == nil {
		return ErrNilChain
	}
	seen := make(map[string]bool, len(e.units))
	for i, u := range e.units {
		if u.producer == nil || u.name == "" {
			return fmt.Errorf("%w: producer %d", ErrEmptyProducerName, i)
		}
		if seen[u.name] {
			return fmt.Errorf("%w: %q", ErrDuplicateProducer, u.name)
		}
		seen[u.name] = true
	}
	return nil
}

// Start launches every producer and the dispatcher. Producers run until
// ctx is cancelled, they return, or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return ErrEngineStopped
	}
	if e.started {
		return ErrAlreadyStarted
	}
	if err := e.validate(); err != nil {
		return err
	}
	e.started = true

	var prodCtx context.Context
	prodCtx, e.prodCancel = context.WithCancel(ctx)
	e.workCtx, e.workCancel = context.WithCancel(context.WithoutCancel(ctx))
	e.ingest = make(chan submission)
	e.dispatcherDone = make(chan struct{})

	go e.dispatch()

	e.producers.Add(len(e.units))
	for _, u := range e.units {
		u.start()
		go e.runProducer(prodCtx, u)
	}
	go func() {
		e.producers.Wait()
		close(e.done)
	}()
	return nil
}

// dispatch hands each submission to its own goroutine so producers never
// block one another.
func (e *Engine) dispatch() {
	defer close(e.dispatcherDone)
	for sub := range e.ingest {
		e.inflight.Add(1)
		go func() {
			defer e.inflight.Done()
			defer close(sub.done)
			e.process(sub)
		}()
	}
}

func (e *Engine) process(sub submission) {
	ctx, span := e.spans.StartEventSpan(e.workCtx, sub.evt.ID, sub.evt.Source)
	e.metrics.RecordIngest(ctx, sub.unit.name)

	out, err := e.chain.Run(ctx, sub.evt)
	defer func() { e.spans.EndSpanWithError(span, err) }()

	evt, ok := out.Event()
	if !ok {
		return
	}

	var wg sync.WaitGroup
	if e.subscribers != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.subscribers.Broadcast(ctx, evt)
		}()
	}
	if e.fanout != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.fanout.Deliver(ctx, evt)
		}()
	}
	wg.Wait()
}

func (e *Engine) emitFor(u *unit) EmitFunc {
	return func(ctx context.Context, evt event.Event) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if evt.Source == "" {
			evt = evt.WithSource(u.name)
		}
		sub := submission{unit: u, evt: evt, done: make(chan struct{})}

		// Concurrent callers of one producer's emit queue here, so its
		// events are processed one at a time and in order.
		select {
		case u.slot <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}
		defer func() { <-u.slot }()

		e.ingestMu.RLock()
		if e.closed {
			e.ingestMu.RUnlock()
			return ErrEngineStopped
		}
		select {
		case e.ingest <- sub:
		case <-ctx.Done():
			e.ingestMu.RUnlock()
			return ctx.Err()
		}
		e.ingestMu.RUnlock()

		u.awaiting.Store(true)
		<-sub.done
		u.awaiting.Store(false)
		u.emitted.Add(1)
		return nil
	}
}

func (e *Engine) runProducer(ctx context.Context, u *unit) {
	defer e.producers.Done()

	logger := observability.EnrichLogger(e.logger, "component", "engine")
	observability.LogProducerStart(logger, u.name)

	err := collect(ctx, u.producer, e.emitFor(u))
	state := StateStopped
	if err != nil && !stoppedNormally(ctx, err) {
		state = StateFailed
		err = &ProducerError{Producer: u.name, Err: err}
	} else {
		err = nil
	}

	u.finish(state, err)
	observability.LogProducerExit(logger, u.name, state.String(), u.emitted.Load(), err)
	e.metrics.RecordProducerExit(context.WithoutCancel(ctx), u.name, state.String())
}

// collect runs the producer, turning a panic into an error.
func collect(ctx context.Context, p Producer, emit EmitFunc) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
	}()
	return p.Collect(ctx, emit)
}

func stoppedNormally(ctx context.Context, err error) bool {
	if errors.Is(err, ErrEngineStopped) {
		return true
	}
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// Stop shuts the engine down. It cancels the producers and waits for them
// up to the grace period, closes ingestion, then waits for in-flight
// events until ctx is done, at which point their work is cancelled.
//
// Stop returns *ShutdownError if producers were abandoned and ctx.Err()
// if in-flight work did not drain in time. It is idempotent; later calls
// return the first result.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		if !e.stopped {
			close(e.done)
		}
		e.stopped = true
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.stopOnce.Do(func() {
		e.stopErr = e.shutdown(ctx)
	})
	return e.stopErr
}

func (e *Engine) shutdown(ctx context.Context) error {
	finish := observability.TimedOperation()
	e.prodCancel()

	grace := time.NewTimer(e.gracePeriod)
	defer grace.Stop()

	var abandoned []string
	select {
	case <-e.done:
	case <-grace.C:
		abandoned = e.running()
	case <-ctx.Done():
		abandoned = e.running()
	}

	e.ingestMu.Lock()
	e.closed = true
	close(e.ingest)
	e.ingestMu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-e.dispatcherDone
		e.inflight.Wait()
		close(drained)
	}()

	var drainErr error
	select {
	case <-drained:
	case <-ctx.Done():
		drainErr = ctx.Err()
	}
	e.workCancel()

	observability.LogShutdown(e.logger, finish(), abandoned)
	if len(abandoned) > 0 {
		return &ShutdownError{Abandoned: abandoned, Err: drainErr}
	}
	return drainErr
}

// running lists producers still inside Collect. A producer blocked only on
// its in-flight event is left to the drain and not reported.
func (e *Engine) running() []string {
	var names []string
	for _, u := range e.units {
		if u.status().State == StateRunning && !u.awaiting.Load() {
			names = append(names, u.name)
		}
	}
	return names
}

// Run starts the engine and blocks until ctx is cancelled or every
// producer has finished. It then stops the engine, allowing the grace
// period plus the drain timeout for shutdown.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-e.done:
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.gracePeriod+e.drainTimeout)
	defer cancel()
	return e.Stop(stopCtx)
}

// Done is closed once every producer has exited. For an engine that never
// started, it is closed by Stop.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Running reports whether the engine has started and not been stopped.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started && !e.stopped
}

// Status returns a snapshot of every producer, in registration order.
func (e *Engine) Status() []ProducerStatus {
	out := make([]ProducerStatus, len(e.units))
	for i, u := range e.units {
		out[i] = u.status()
	}
	return out
}

// Subscribers returns the subscriber registry, or nil if none was set.
func (e *Engine) Subscribers() *subscriber.Registry {
	return e.subscribers
}
