package errors

import (
	"fmt"
	"net/http"
	"time"
)

// HTTPError is a non-2xx response from a webhook, feed or API.
type HTTPError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *HTTPError) Error() string {
	if e.Endpoint == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.Endpoint, e.Body)
}

// ErrorCategory treats throttling, request timeouts and server errors as
// transient.
func (e *HTTPError) ErrorCategory() Category {
	switch {
	case e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode >= 500:
		return CategoryTransient
	}
	return CategoryPermanent
}

// TimeoutError is an operation that ran past its own deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s", e.Op, e.Timeout)
}

func (e *TimeoutError) ErrorCategory() Category { return CategoryTransient }

// ValidationError rejects malformed input: an event missing a title, an
// unknown priority, a bad component option.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) ErrorCategory() Category { return CategoryPermanent }
