package chain

import (
	"context"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Stage is one step of the processing chain.
//
// Process receives the previous stage's output and returns Pass with the
// event to continue (transformed or not) or Drop to stop. A returned error
// drops the event and is reported as a *StageError; it does not stop the
// chain from processing later events.
//
// Stages run concurrently for different events and must be safe for
// concurrent use.
type Stage interface {
	Name() string
	Process(ctx context.Context, evt event.Event) (Outcome, error)
}

// StageFunc is the function form of Stage.Process.
type StageFunc func(ctx context.Context, evt event.Event) (Outcome, error)

type funcStage struct {
	name string
	fn   StageFunc
}

// NewStage adapts fn into a Stage called name.
func NewStage(name string, fn StageFunc) Stage {
	return funcStage{name: name, fn: fn}
}

func (s funcStage) Name() string { return s.name }

func (s funcStage) Process(ctx context.Context, evt event.Event) (Outcome, error) {
	return s.fn(ctx, evt)
}

// Filter returns a Stage that passes events for which keep is true and
// drops the rest with reason.
func Filter(name, reason string, keep func(event.Event) bool) Stage {
	return NewStage(name, func(_ context.Context, evt event.Event) (Outcome, error) {
		if keep(evt) {
			return Pass(evt), nil
		}
		return Drop(reason), nil
	})
}
