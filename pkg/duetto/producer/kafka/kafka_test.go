package kafka_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/producer/kafka"
)

// fakeReader serves queued messages and then blocks until ctx is done.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafkago.Message
	fetchErr  error
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.msgs) > 0 {
		msg := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return msg, nil
	}
	err := r.fetchErr
	r.mu.Unlock()
	if err != nil {
		return kafkago.Message{}, err
	}
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func encoded(t *testing.T, codec event.Codec, id string, offset int64) kafkago.Message {
	t.Helper()
	body, err := codec.Marshal(event.New(event.TypeCustom, "upstream", "title "+id, event.WithID(id)))
	require.NoError(t, err)
	return kafkago.Message{
		Topic:   "alerts",
		Offset:  offset,
		Value:   body,
		Headers: []kafkago.Header{{Key: "content-type", Value: []byte(codec.ContentType())}},
	}
}

func TestProducer_Collect(t *testing.T) {
	reader := &fakeReader{msgs: []kafkago.Message{
		encoded(t, event.JSONCodec{}, "a", 1),
		{Topic: "alerts", Offset: 2, Value: []byte("not an event")},
		encoded(t, event.MsgpackCodec{}, "b", 3),
	}}
	p, err := kafka.New("kafka-in", reader, event.JSONCodec{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "kafka-in", p.Name())

	var (
		mu  sync.Mutex
		ids []string
	)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = p.Collect(ctx, func(_ context.Context, evt event.Event) error {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, evt.ID)
		return nil
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, []int64{1, 2, 3}, reader.committed, "undecodable messages are committed and skipped")
	assert.True(t, reader.closed)
}

func TestProducer_Errors(t *testing.T) {
	t.Run("reader failure fails the producer", func(t *testing.T) {
		reader := &fakeReader{fetchErr: errors.New("broker unreachable")}
		p, err := kafka.New("kafka-in", reader, nil, nil)
		require.NoError(t, err)

		err = p.Collect(context.Background(), func(context.Context, event.Event) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "broker unreachable")
	})

	t.Run("emit failure leaves offset uncommitted", func(t *testing.T) {
		reader := &fakeReader{msgs: []kafkago.Message{encoded(t, event.JSONCodec{}, "a", 7)}}
		p, err := kafka.New("kafka-in", reader, nil, nil)
		require.NoError(t, err)

		stopped := errors.New("stopped")
		err = p.Collect(context.Background(), func(context.Context, event.Event) error { return stopped })
		assert.ErrorIs(t, err, stopped)
		assert.Empty(t, reader.committed)
	})

	t.Run("nil reader", func(t *testing.T) {
		_, err := kafka.New("kafka-in", nil, nil, nil)
		assert.Error(t, err)
	})

	t.Run("config validation", func(t *testing.T) {
		_, err := kafka.FromConfig("k", config.New(map[string]any{"topic": "t"}), nil)
		assert.ErrorContains(t, err, "brokers")
		_, err = kafka.FromConfig("k", config.New(map[string]any{"brokers": "localhost:9092"}), nil)
		assert.ErrorContains(t, err, "topic")
		_, err = kafka.FromConfig("k", config.New(map[string]any{"brokers": "localhost:9092", "topic": "t", "codec": "xml"}), nil)
		assert.ErrorContains(t, err, "unknown codec")
	})
}
