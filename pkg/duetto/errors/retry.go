package errors

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy configures retry behavior.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	MaxAttempts int

	// InitialBackoff is the wait before the second attempt.
	InitialBackoff time.Duration

	// MaxBackoff caps the wait between attempts.
	MaxBackoff time.Duration

	// BackoffFactor multiplies the wait after each attempt.
	BackoffFactor float64

	// Jitter is the random jitter factor (0.0-1.0).
	Jitter float64

	// Retryable overrides IsRetryable when set.
	Retryable func(error) bool

	// OnRetry is called before each wait with the attempt that just failed.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// DefaultPolicy retries transient failures three times.
var DefaultPolicy = Policy{
	MaxAttempts:    3,
	InitialBackoff: 500 * time.Millisecond,
	MaxBackoff:     10 * time.Second,
	BackoffFactor:  2.0,
	Jitter:         0.1,
}

// NoRetry makes exactly one attempt.
var NoRetry = Policy{MaxAttempts: 1}

// Result is the outcome of Retry.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
	Duration time.Duration
}

// Retry calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts, or ctx is done. Failures come back as *CategorizedError.
func Retry[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	maxAttempts := max(p.MaxAttempts, 1)
	backoff := p.InitialBackoff

	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result[T]{
				Err:      &CategorizedError{Err: err, Category: CategoryPermanent, Attempts: attempt - 1, Op: "canceled"},
				Attempts: attempt - 1,
				Duration: time.Since(start),
			}
		}

		v, err := fn(ctx)
		if err == nil {
			return Result[T]{Value: v, Attempts: attempt, Duration: time.Since(start)}
		}
		lastErr = err

		if !retryable(err) {
			return Result[T]{
				Err:      &CategorizedError{Err: err, Category: Categorize(err), Attempts: attempt},
				Attempts: attempt,
				Duration: time.Since(start),
			}
		}
		if attempt == maxAttempts {
			break
		}

		wait := jittered(backoff, p.Jitter)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, wait)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result[T]{
				Err:      &CategorizedError{Err: ctx.Err(), Category: CategoryPermanent, Attempts: attempt, Op: "canceled during backoff"},
				Attempts: attempt,
				Duration: time.Since(start),
			}
		case <-timer.C:
		}

		if p.BackoffFactor > 0 {
			backoff = time.Duration(float64(backoff) * p.BackoffFactor)
		}
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	return Result[T]{
		Err: &CategorizedError{
			Err:      lastErr,
			Category: Categorize(lastErr),
			Attempts: maxAttempts,
			Op:       "max attempts exceeded",
		},
		Attempts: maxAttempts,
		Duration: time.Since(start),
	}
}

// Do is Retry for functions without a result value.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	return Retry(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}).Err
}

func jittered(base time.Duration, jitter float64) time.Duration {
	if jitter <= 0 || base <= 0 {
		return base
	}
	delta := float64(base) * jitter * (rand.Float64()*2 - 1)
	return time.Duration(float64(base) + delta)
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(n int) PolicyOption {
	return func(p *Policy) { p.MaxAttempts = n }
}

// WithBackoff sets the initial and maximum backoff.
func WithBackoff(initial, maxBackoff time.Duration) PolicyOption {
	return func(p *Policy) {
		p.InitialBackoff = initial
		p.MaxBackoff = maxBackoff
	}
}

// WithJitter sets the jitter factor.
func WithJitter(j float64) PolicyOption {
	return func(p *Policy) { p.Jitter = j }
}

// WithOnRetry sets a hook called before each backoff wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) PolicyOption {
	return func(p *Policy) { p.OnRetry = fn }
}

// NewPolicy starts from DefaultPolicy and applies opts.
func NewPolicy(opts ...PolicyOption) Policy {
	p := DefaultPolicy
	for _, opt := range opts {
		opt(&p)
	}
	return p
}
