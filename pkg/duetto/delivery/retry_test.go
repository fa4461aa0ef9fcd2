package delivery_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	derrors "github.com/randalmurphal/duetto/pkg/duetto/errors"
)

func fastPolicy(attempts int) derrors.Policy {
	return derrors.Policy{MaxAttempts: attempts, InitialBackoff: time.Millisecond, BackoffFactor: 1}
}

func TestWithRetry(t *testing.T) {
	tests := []struct {
		name     string
		errs     []error
		wantCall int
		wantErr  bool
	}{
		{
			name:     "transient then success",
			errs:     []error{&derrors.HTTPError{StatusCode: 503}, nil},
			wantCall: 2,
		},
		{
			name:     "permanent is not retried",
			errs:     []error{&derrors.HTTPError{StatusCode: 400}},
			wantCall: 1,
			wantErr:  true,
		},
		{
			name: "gives up after max attempts",
			errs: []error{
				&derrors.HTTPError{StatusCode: 429},
				&derrors.HTTPError{StatusCode: 429},
				&derrors.HTTPError{StatusCode: 429},
			},
			wantCall: 3,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			ch := delivery.WithRetry(delivery.Funcs{ChannelName: "hook", SendFunc: func(context.Context, delivery.Message) error {
				err := tt.errs[calls]
				calls++
				return err
			}}, fastPolicy(3))

			assert.Equal(t, "hook", ch.Name())
			err := ch.Send(context.Background(), delivery.Message{})
			assert.Equal(t, tt.wantCall, calls)
			if tt.wantErr {
				var httpErr *derrors.HTTPError
				assert.True(t, errors.As(err, &httpErr))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_ClosesInner(t *testing.T) {
	inner := &closingChannel{Funcs: delivery.Funcs{ChannelName: "c"}}
	ch := delivery.WithRetry(inner, fastPolicy(1))

	closer, ok := ch.(io.Closer)
	require.True(t, ok)
	require.NoError(t, closer.Close())
	assert.True(t, inner.closed)
}
