package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/channel/redis"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

func setup(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func sample() event.Event {
	return event.New(event.TypeSEC8K, "sec", "8-K: Acme", event.WithID("e1"))
}

func TestPubSub(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "alerts")
	defer sub.Close()
	_, err := sub.Receive(ctx) // subscription confirmation
	require.NoError(t, err)

	ch, err := redis.New("bus", client, "alerts")
	require.NoError(t, err)

	msg, err := ch.Format(sample())
	require.NoError(t, err)
	require.NoError(t, ch.Send(ctx, msg))

	select {
	case m := <-sub.Channel():
		got, err := event.JSONCodec{}.Unmarshal([]byte(m.Payload))
		require.NoError(t, err)
		assert.Equal(t, "e1", got.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
	}
}

func TestStream(t *testing.T) {
	mr, client := setup(t)
	ctx := context.Background()

	ch, err := redis.New("stream", client, "duetto:alerts",
		redis.WithMode(redis.ModeStream),
		redis.WithCodec(event.MsgpackCodec{}),
		redis.WithMaxLen(100),
	)
	require.NoError(t, err)

	for _, id := range []string{"a", "b"} {
		msg, err := ch.Format(event.New(event.TypeCustom, "push", "t", event.WithID(id)))
		require.NoError(t, err)
		require.NoError(t, ch.Send(ctx, msg))
	}

	entries, err := client.XRange(ctx, "duetto:alerts", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Values["id"])
	assert.Equal(t, "push", entries[0].Values["source"])
	assert.Equal(t, "application/msgpack", entries[0].Values["content_type"])

	got, err := event.MsgpackCodec{}.Unmarshal([]byte(entries[1].Values["event"].(string)))
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)
	assert.True(t, mr.Exists("duetto:alerts"))
}

func TestSend_ServerDown(t *testing.T) {
	mr, client := setup(t)
	ch, err := redis.New("bus", client, "alerts")
	require.NoError(t, err)

	mr.Close()
	msg, err := ch.Format(sample())
	require.NoError(t, err)
	assert.Error(t, ch.Send(context.Background(), msg))
}

func TestNew_Validation(t *testing.T) {
	_, client := setup(t)
	_, err := redis.New("x", nil, "alerts")
	assert.Error(t, err)
	_, err = redis.New("x", client, "")
	assert.Error(t, err)
	_, err = redis.New("x", client, "alerts", redis.WithMode("list"))
	assert.ErrorContains(t, err, "unknown redis mode")
}

func TestFromConfig(t *testing.T) {
	mr, _ := setup(t)

	ch, err := redis.FromConfig("bus", config.New(map[string]any{
		"url":     "redis://" + mr.Addr(),
		"channel": "alerts",
		"mode":    "stream",
		"codec":   "msgpack",
	}))
	require.NoError(t, err)
	defer ch.Close()

	msg, err := ch.Format(sample())
	require.NoError(t, err)
	assert.Equal(t, "application/msgpack", msg.ContentType)
	require.NoError(t, ch.Send(context.Background(), msg))
	assert.True(t, mr.Exists("alerts"))

	_, err = redis.FromConfig("bus", config.New(map[string]any{"channel": "alerts"}))
	assert.Error(t, err)
	_, err = redis.FromConfig("bus", config.New(map[string]any{"url": "redis://" + mr.Addr(), "channel": "a", "codec": "xml"}))
	assert.ErrorContains(t, err, "unknown codec")
}
