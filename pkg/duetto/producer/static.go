package producer

import (
	"context"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Static emits a fixed list of events in order and then finishes.
type Static struct {
	name     string
	events   []event.Event
	interval time.Duration
}

var _ duetto.Producer = (*Static)(nil)

// NewStatic creates a producer for events.
func NewStatic(name string, events ...event.Event) *Static {
	return &Static{name: name, events: append([]event.Event(nil), events...)}
}

// WithInterval makes the producer pause between events.
func (s *Static) WithInterval(d time.Duration) *Static {
	s.interval = d
	return s
}

// Name returns the producer name.
func (s *Static) Name() string { return s.name }

// Collect emits every event, pausing between them if an interval is set.
func (s *Static) Collect(ctx context.Context, emit duetto.EmitFunc) error {
	for i, evt := range s.events {
		if i > 0 && s.interval > 0 {
			if err := sleep(ctx, s.interval); err != nil {
				return err
			}
		}
		if err := emit(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
