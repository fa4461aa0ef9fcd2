package delivery

import (
	"context"
	"io"

	"github.com/randalmurphal/duetto/pkg/duetto/errors"
)

// retrying retries transient send failures of the wrapped channel.
type retrying struct {
	Channel
	policy errors.Policy
}

// WithRetry wraps ch so that Send retries transient errors under policy.
// Format is not retried.
func WithRetry(ch Channel, policy errors.Policy) Channel {
	return &retrying{Channel: ch, policy: policy}
}

func (r *retrying) Send(ctx context.Context, msg Message) error {
	return errors.Do(ctx, r.policy, func(ctx context.Context) error {
		return r.Channel.Send(ctx, msg)
	})
}

// Close closes the wrapped channel if it is an io.Closer.
func (r *retrying) Close() error {
	if c, ok := r.Channel.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
