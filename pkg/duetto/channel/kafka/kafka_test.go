package kafka_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/channel/kafka"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafkago.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestSend_KeysBySource(t *testing.T) {
	w := &fakeWriter{}
	ch, err := kafka.New("bus", w, nil)
	require.NoError(t, err)

	evt := event.New(event.TypeSECForm4, "sec-edgar", "Form 4: Acme", event.WithID("e1"))
	msg, err := ch.Format(evt)
	require.NoError(t, err)
	require.NoError(t, ch.Send(context.Background(), msg))

	require.Len(t, w.msgs, 1)
	got := w.msgs[0]
	assert.Equal(t, "sec-edgar", string(got.Key))
	assert.Empty(t, got.Topic, "writer topic is used")

	decoded, err := event.JSONCodec{}.Unmarshal(got.Value)
	require.NoError(t, err)
	assert.Equal(t, "e1", decoded.ID)

	headers := map[string]string{}
	var keys []string
	for _, h := range got.Headers {
		headers[h.Key] = string(h.Value)
		keys = append(keys, h.Key)
	}
	sort.Strings(keys)
	assert.Equal(t, []string{"content-type", "event-id", "event-type"}, keys)
	assert.Equal(t, "sec_form4", headers["event-type"])

	require.NoError(t, ch.Close())
	assert.True(t, w.closed)
}

func TestSend_WriterError(t *testing.T) {
	boom := errors.New("leader not available")
	ch, err := kafka.New("bus", &fakeWriter{err: boom}, event.MsgpackCodec{})
	require.NoError(t, err)

	msg, err := ch.Format(event.New(event.TypeCustom, "p", "t"))
	require.NoError(t, err)
	assert.Equal(t, "application/msgpack", msg.ContentType)
	assert.ErrorIs(t, ch.Send(context.Background(), msg), boom)
}

func TestNewWriter(t *testing.T) {
	w := kafka.NewWriter([]string{"localhost:9092"}, "alerts")
	defer w.Close()
	assert.Equal(t, "alerts", w.Topic)
	assert.IsType(t, &kafkago.Hash{}, w.Balancer)
}

func TestFromConfig_Validation(t *testing.T) {
	_, err := kafka.FromConfig("bus", config.New(map[string]any{"topic": "alerts"}))
	assert.ErrorContains(t, err, "brokers")
	_, err = kafka.FromConfig("bus", config.New(map[string]any{"brokers": "localhost:9092"}))
	assert.ErrorContains(t, err, "topic")

	ch, err := kafka.FromConfig("bus", config.New(map[string]any{"brokers": "localhost:9092", "topic": "alerts"}))
	require.NoError(t, err)
	assert.Equal(t, "bus", ch.Name())
	assert.NoError(t, ch.Close())
}

func TestNew_NilWriter(t *testing.T) {
	_, err := kafka.New("bus", nil, nil)
	assert.Error(t, err)
}
