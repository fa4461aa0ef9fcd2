// Package errors classifies delivery and collection failures and retries
// the transient ones.
//
// Channels and producers wrap what they see on the wire into the typed
// errors here (HTTPError, TimeoutError, ValidationError). Each of those
// knows its own Category; Categorize finds the first classified error in a
// chain, and Retry/Do only try again when it comes back transient.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Category says whether another attempt can succeed.
type Category int

const (
	// CategoryTransient covers rate limits, 5xx responses, broker
	// disconnects and deadlines.
	CategoryTransient Category = iota

	// CategoryPermanent covers rejected requests, bad configuration and
	// malformed events. Unclassified errors land here too.
	CategoryPermanent
)

func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	}
	return "unknown"
}

// classified is implemented by errors that know their own Category.
type classified interface {
	error
	ErrorCategory() Category
}

// CategorizedError pins a Category onto an arbitrary error.
type CategorizedError struct {
	Err      error
	Category Category
	// Attempts made before giving up. Zero when the error never went
	// through Retry.
	Attempts int
	// Op names the failed operation, e.g. "publish" or "fetch feed".
	Op string
}

func (e *CategorizedError) Error() string {
	msg := fmt.Sprintf("%s (%s, attempts: %d)", e.Err, e.Category, e.Attempts)
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *CategorizedError) Unwrap() error { return e.Err }

// ErrorCategory returns the pinned category.
func (e *CategorizedError) ErrorCategory() Category { return e.Category }

// Transient marks err as worth retrying.
func Transient(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryTransient, Op: op}
}

// Permanent marks err as not worth retrying.
func Permanent(err error, op string) *CategorizedError {
	return &CategorizedError{Err: err, Category: CategoryPermanent, Op: op}
}

// Categorize reports how err should be handled. The outermost classified
// error in the chain wins; bare deadline and network timeout errors are
// transient and everything else, nil included, is permanent.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent
	}
	var c classified
	if errors.As(err, &c) {
		return c.ErrorCategory()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return CategoryTransient
	}
	return CategoryPermanent
}

// IsRetryable reports whether Categorize(err) is transient.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}
