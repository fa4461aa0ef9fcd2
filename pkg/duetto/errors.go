package duetto

import (
	"errors"
	"fmt"
	"strings"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
)

// Sentinel errors for engine lifecycle.
var (
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrEngineStopped indicates the engine has been stopped. Emits after
	// shutdown return it.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrNilChain indicates the engine was built without a processing chain.
	ErrNilChain = errors.New("processing chain is nil")

	// ErrDuplicateProducer indicates two producers share a name.
	ErrDuplicateProducer = errors.New("duplicate producer name")

	// ErrEmptyProducerName indicates a producer has no name.
	ErrEmptyProducerName = errors.New("producer name is empty")
)

// StageError is a stage failing for one event.
type StageError = chain.StageError

// DeliveryError is a channel failing for one event.
type DeliveryError = delivery.Error

// ProducerError wraps the error that made a producer fail.
type ProducerError struct {
	// Producer is the producer name.
	Producer string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ProducerError) Error() string {
	return fmt.Sprintf("producer %s: %v", e.Producer, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ProducerError) Unwrap() error {
	return e.Err
}

// PanicError is a recovered producer panic.
type PanicError struct {
	Value any
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ShutdownError reports producers that did not exit within the grace
// period. A producer whose only pending work is an event already handed
// to the engine is not listed; the drain covers it. Err is set when
// in-flight work also failed to drain in time.
type ShutdownError struct {
	Abandoned []string
	Err       error
}

// Error implements the error interface.
func (e *ShutdownError) Error() string {
	msg := "shutdown abandoned producers: " + strings.Join(e.Abandoned, ", ")
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the drain error, if any.
func (e *ShutdownError) Unwrap() error {
	return e.Err
}
