package webhook

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// MustFormat formats evt or fails the test.
func MustFormat(t *testing.T, c *Channel, evt event.Event) delivery.Message {
	t.Helper()
	msg, err := c.Format(evt)
	require.NoError(t, err)
	return msg
}
