package mqtt_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/channel/mqtt"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	derrors "github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// fakeToken completes when done is closed.
type fakeToken struct {
	done chan struct{}
	err  error
}

func completed(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu           sync.Mutex
	sent         []published
	token        func() pahomqtt.Token
	disconnected bool
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token {
	c.mu.Lock()
	c.sent = append(c.sent, published{topic, qos, retained, payload.([]byte)})
	c.mu.Unlock()
	if c.token != nil {
		return c.token()
	}
	return completed(nil)
}

func (c *fakeClient) Disconnect(uint) { c.disconnected = true }

func sample() event.Event {
	return event.New(event.TypeSEC8K, "sec-edgar", "8-K", event.WithID("e1"), event.WithPriority(event.High))
}

func TestPublish(t *testing.T) {
	client := &fakeClient{}
	ch, err := mqtt.New("broker", client, mqtt.WithQoS(1), mqtt.WithRetained(true))
	require.NoError(t, err)

	msg, err := ch.Format(sample())
	require.NoError(t, err)
	assert.Equal(t, "duetto/alerts/sec-edgar/high", msg.Destination)
	require.NoError(t, ch.Send(context.Background(), msg))

	require.Len(t, client.sent, 1)
	assert.Equal(t, "duetto/alerts/sec-edgar/high", client.sent[0].topic)
	assert.Equal(t, byte(1), client.sent[0].qos)
	assert.True(t, client.sent[0].retained)

	got, err := event.JSONCodec{}.Unmarshal(client.sent[0].payload)
	require.NoError(t, err)
	assert.Equal(t, "e1", got.ID)

	require.NoError(t, ch.Close())
	assert.True(t, client.disconnected)
}

func TestTopicTemplate(t *testing.T) {
	ch, err := mqtt.New("broker", &fakeClient{}, mqtt.WithTopic("alerts/${ticker:-unknown}/${type}"))
	require.NoError(t, err)

	msg, err := ch.Format(sample())
	require.NoError(t, err)
	assert.Equal(t, "alerts/unknown/sec_8k", msg.Destination)
}

func TestPublish_Timeout(t *testing.T) {
	never := &fakeToken{done: make(chan struct{})}
	ch, err := mqtt.New("broker", &fakeClient{token: func() pahomqtt.Token { return never }},
		mqtt.WithPublishTimeout(20*time.Millisecond))
	require.NoError(t, err)

	msg, err := ch.Format(sample())
	require.NoError(t, err)

	err = ch.Send(context.Background(), msg)
	var timeout *derrors.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.True(t, derrors.IsRetryable(err))
}

func TestPublish_TokenError(t *testing.T) {
	boom := errors.New("not connected")
	ch, err := mqtt.New("broker", &fakeClient{token: func() pahomqtt.Token { return completed(boom) }})
	require.NoError(t, err)

	msg, err := ch.Format(sample())
	require.NoError(t, err)
	assert.ErrorIs(t, ch.Send(context.Background(), msg), boom)
}

func TestPublish_ContextCanceled(t *testing.T) {
	never := &fakeToken{done: make(chan struct{})}
	ch, err := mqtt.New("broker", &fakeClient{token: func() pahomqtt.Token { return never }})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	msg, err := ch.Format(sample())
	require.NoError(t, err)
	assert.ErrorIs(t, ch.Send(ctx, msg), context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := mqtt.New("x", nil)
	assert.Error(t, err)
	_, err = mqtt.New("x", &fakeClient{}, mqtt.WithQoS(3))
	assert.ErrorContains(t, err, "qos")

	_, err = mqtt.FromConfig("x", config.New(map[string]any{}))
	assert.ErrorContains(t, err, "broker")
	_, err = mqtt.FromConfig("x", config.New(map[string]any{"broker": "tcp://localhost:1883", "qos": 5}))
	assert.ErrorContains(t, err, "qos")
}
