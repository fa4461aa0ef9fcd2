package chain

import "github.com/randalmurphal/duetto/pkg/duetto/event"

// Outcome is the result of one stage: either the (possibly transformed)
// event passes on, or it is dropped with a reason.
//
// The zero Outcome is a drop with no reason.
type Outcome struct {
	evt       event.Event
	passed    bool
	droppedBy string
	reason    string
}

// Pass continues the chain with evt.
func Pass(evt event.Event) Outcome {
	return Outcome{evt: evt, passed: true}
}

// Drop stops the chain. Later stages are not invoked.
func Drop(reason string) Outcome {
	return Outcome{reason: reason}
}

// Event returns the surviving event. ok is false for a dropped outcome.
func (o Outcome) Event() (evt event.Event, ok bool) {
	return o.evt, o.passed
}

// Dropped reports whether the event was dropped.
func (o Outcome) Dropped() bool {
	return !o.passed
}

// DroppedBy names the stage that dropped the event. It is filled in by
// Chain.Run and empty for a passing outcome.
func (o Outcome) DroppedBy() string {
	return o.droppedBy
}

// Reason is the drop reason given by the stage.
func (o Outcome) Reason() string {
	return o.reason
}

func (o Outcome) by(stage string) Outcome {
	if o.droppedBy == "" {
		o.droppedBy = stage
	}
	return o
}
