package producer

import (
	"context"
	"errors"
	"sync"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// ErrNotRunning indicates Submit was called while the producer is not
// attached to a running engine.
var ErrNotRunning = errors.New("push producer is not running")

// Push is a producer fed from outside the engine.
type Push struct {
	name string

	mu   sync.RWMutex
	emit duetto.EmitFunc
}

var _ duetto.Producer = (*Push)(nil)

// NewPush creates a push producer.
func NewPush(name string) *Push {
	return &Push{name: name}
}

// Name returns the producer name.
func (p *Push) Name() string { return p.name }

// Collect attaches the producer to the engine until ctx is cancelled.
func (p *Push) Collect(ctx context.Context, emit duetto.EmitFunc) error {
	p.mu.Lock()
	p.emit = emit
	p.mu.Unlock()

	<-ctx.Done()

	p.mu.Lock()
	p.emit = nil
	p.mu.Unlock()
	return ctx.Err()
}

// Running reports whether Submit will currently accept events.
func (p *Push) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.emit != nil
}

// Submit hands evt to the engine and blocks until it has been processed.
// It returns ErrNotRunning before the engine starts and after it stops.
func (p *Push) Submit(ctx context.Context, evt event.Event) error {
	p.mu.RLock()
	emit := p.emit
	p.mu.RUnlock()

	if emit == nil {
		return ErrNotRunning
	}
	if err := emit(ctx, evt); err != nil {
		if errors.Is(err, duetto.ErrEngineStopped) {
			return ErrNotRunning
		}
		return err
	}
	return nil
}
