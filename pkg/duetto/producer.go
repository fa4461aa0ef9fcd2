package duetto

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Producer is an independent source of events.
//
// Collect runs until the producer is done or ctx is cancelled, calling
// emit for each event. Returning nil ends the stream normally. Returning
// ctx's error (or ErrEngineStopped) after cancellation is also a normal
// stop. Any other error, or a panic, marks the producer Failed; the engine
// never restarts it.
type Producer interface {
	Name() string
	Collect(ctx context.Context, emit EmitFunc) error
}

// EmitFunc hands an event to the engine. It blocks until the event has
// been processed and delivered, and returns ErrEngineStopped once
// ingestion is closed.
type EmitFunc func(ctx context.Context, evt event.Event) error

// State is a producer's lifecycle state.
type State int

// Producer states.
const (
	StateNotStarted State = iota
	StateRunning
	StateStopped
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ProducerStatus is a snapshot of one producer.
type ProducerStatus struct {
	Name      string    `json:"name"`
	State     State     `json:"state"`
	Err       error     `json:"-"`
	Emitted   uint64    `json:"emitted"`
	StartedAt time.Time `json:"started_at,omitzero"`
	StoppedAt time.Time `json:"stopped_at,omitzero"`
}

// unit tracks one running producer.
type unit struct {
	producer Producer
	name     string
	emitted  atomic.Uint64

	// slot holds at most one in-flight event per producer.
	slot chan struct{}
	// awaiting is set while an emit waits on an already-submitted event.
	awaiting atomic.Bool

	mu        sync.Mutex
	state     State
	err       error
	startedAt time.Time
	stoppedAt time.Time
}

func (u *unit) start() {
	u.mu.Lock()
	u.state = StateRunning
	u.startedAt = time.Now()
	u.mu.Unlock()
}

func (u *unit) finish(state State, err error) {
	u.mu.Lock()
	u.state = state
	u.err = err
	u.stoppedAt = time.Now()
	u.mu.Unlock()
}

func (u *unit) status() ProducerStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	return ProducerStatus{
		Name:      u.name,
		State:     u.state,
		Err:       u.err,
		Emitted:   u.emitted.Load(),
		StartedAt: u.startedAt,
		StoppedAt: u.stoppedAt,
	}
}
