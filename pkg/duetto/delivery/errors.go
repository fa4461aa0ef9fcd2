package delivery

import (
	"fmt"
	"runtime/debug"
)

// Phase names the step of a delivery that failed.
type Phase string

// Delivery phases.
const (
	PhaseFormat Phase = "format"
	PhaseSend   Phase = "send"
)

// Error is a failed delivery to one channel.
type Error struct {
	Channel string
	Phase   Phase
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("channel %s: %s: %v", e.Channel, e.Phase, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PanicError is a recovered channel panic.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("channel panicked: %v", e.Value)
}

func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, Stack: string(debug.Stack())}
}
