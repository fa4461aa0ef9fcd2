package chain

import (
	"errors"
	"fmt"
)

// Sentinel errors for chain construction.
var (
	// ErrNilStage indicates a nil Stage was passed to New.
	ErrNilStage = errors.New("nil stage")

	// ErrEmptyStageName indicates a stage with an empty Name.
	ErrEmptyStageName = errors.New("stage name cannot be empty")
)

// StageError wraps an error returned (or panicked) by a stage.
type StageError struct {
	// Stage is the name of the stage that failed.
	Stage string
	// EventID is the event being processed.
	EventID string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: event %s: %v", e.Stage, e.EventID, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StageError) Unwrap() error {
	return e.Err
}

// PanicError captures a recovered stage panic.
type PanicError struct {
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}
