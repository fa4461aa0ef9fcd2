package chain_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/chain"
	"github.com/randalmurphal/duetto/pkg/duetto/dedup"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/observability"
)

func dedupStage(c *dedup.Cache) chain.Stage {
	return chain.NewStage("dedup", func(_ context.Context, evt event.Event) (chain.Outcome, error) {
		if c.ContainsOrInsert(evt.ID) {
			return chain.Drop("duplicate"), nil
		}
		return chain.Pass(evt), nil
	})
}

func countingStage(name string, calls *atomic.Int32) chain.Stage {
	return chain.NewStage(name, func(_ context.Context, evt event.Event) (chain.Outcome, error) {
		calls.Add(1)
		return chain.Pass(evt), nil
	})
}

func TestRun_DedupThenFilter(t *testing.T) {
	var filterCalls atomic.Int32
	c := chain.MustNew([]chain.Stage{
		dedupStage(dedup.New(10)),
		countingStage("filter", &filterCalls),
	})
	evt := event.New(event.TypeSEC8K, "sec", "8-K: Acme", event.WithID("e1"))

	first, err := c.Run(context.Background(), evt)
	require.NoError(t, err)
	got, ok := first.Event()
	require.True(t, ok)
	assert.Equal(t, "e1", got.ID)

	second, err := c.Run(context.Background(), evt)
	require.NoError(t, err)
	assert.True(t, second.Dropped())
	assert.Equal(t, "dedup", second.DroppedBy())
	assert.Equal(t, "duplicate", second.Reason())
	assert.Equal(t, int32(1), filterCalls.Load())
}

func TestRun_ShortCircuit(t *testing.T) {
	var second atomic.Int32
	c := chain.MustNew([]chain.Stage{
		chain.Filter("reject-all", "nope", func(event.Event) bool { return false }),
		countingStage("never", &second),
	})

	out, err := c.Run(context.Background(), event.New(event.TypeCustom, "t", "x"))
	require.NoError(t, err)
	assert.True(t, out.Dropped())
	assert.Equal(t, "reject-all", out.DroppedBy())
	assert.Equal(t, int32(0), second.Load(), "stage after a drop must not run")

	_, ok := out.Event()
	assert.False(t, ok)
}

func TestRun_Transforms(t *testing.T) {
	upgrade := chain.NewStage("upgrade", func(_ context.Context, evt event.Event) (chain.Outcome, error) {
		return chain.Pass(evt.WithPriority(event.High)), nil
	})
	var seen event.Priority
	observe := chain.NewStage("observe", func(_ context.Context, evt event.Event) (chain.Outcome, error) {
		seen = evt.Priority
		return chain.Pass(evt), nil
	})

	in := event.New(event.TypeCustom, "t", "x", event.WithPriority(event.Low))
	out, err := chain.MustNew([]chain.Stage{upgrade, observe}).Run(context.Background(), in)
	require.NoError(t, err)

	got, _ := out.Event()
	assert.Equal(t, event.High, seen)
	assert.Equal(t, event.High, got.Priority)
	assert.Equal(t, event.Low, in.Priority, "input event is never modified")
}

func TestRun_StageError(t *testing.T) {
	boom := errors.New("boom")
	var after atomic.Int32
	c := chain.MustNew([]chain.Stage{
		chain.NewStage("broken", func(context.Context, event.Event) (chain.Outcome, error) {
			return chain.Outcome{}, boom
		}),
		countingStage("after", &after),
	})
	evt := event.New(event.TypeCustom, "t", "x", event.WithID("e9"))

	out, err := c.Run(context.Background(), evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	var se *chain.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "broken", se.Stage)
	assert.Equal(t, "e9", se.EventID)
	assert.True(t, out.Dropped())
	assert.Equal(t, "broken", out.DroppedBy())
	assert.Equal(t, int32(0), after.Load())

	// The chain keeps working after an error.
	_, err = c.Run(context.Background(), evt)
	assert.ErrorIs(t, err, boom)
}

func TestRun_PanicRecovered(t *testing.T) {
	c := chain.MustNew([]chain.Stage{
		chain.NewStage("panicky", func(context.Context, event.Event) (chain.Outcome, error) {
			panic("kaboom")
		}),
	})

	var out chain.Outcome
	var err error
	require.NotPanics(t, func() {
		out, err = c.Run(context.Background(), event.New(event.TypeCustom, "t", "x"))
	})
	var pe *chain.PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "kaboom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.True(t, out.Dropped())
	assert.Equal(t, "panicky", out.DroppedBy())
}

func TestRun_CanceledContext(t *testing.T) {
	var calls atomic.Int32
	c := chain.MustNew([]chain.Stage{countingStage("a", &calls)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := c.Run(ctx, event.New(event.TypeCustom, "t", "x"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, out.Dropped())
	assert.Equal(t, int32(0), calls.Load())
}

func TestRun_EmptyChainPasses(t *testing.T) {
	c := chain.MustNew(nil)
	out, err := c.Run(context.Background(), event.New(event.TypeCustom, "t", "x"))
	require.NoError(t, err)
	assert.False(t, out.Dropped())
	assert.Equal(t, 0, c.Len())
}

func TestNew_Validation(t *testing.T) {
	_, err := chain.New([]chain.Stage{nil})
	assert.ErrorIs(t, err, chain.ErrNilStage)

	_, err = chain.New([]chain.Stage{chain.NewStage("", nil)})
	assert.ErrorIs(t, err, chain.ErrEmptyStageName)

	assert.Panics(t, func() { chain.MustNew([]chain.Stage{nil}) })
}

func TestStages(t *testing.T) {
	var n atomic.Int32
	c := chain.MustNew([]chain.Stage{countingStage("a", &n), countingStage("b", &n)})
	names := c.Stages()
	assert.Equal(t, []string{"a", "b"}, names)

	names[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, c.Stages())
}

func TestOutcome_Zero(t *testing.T) {
	var o chain.Outcome
	assert.True(t, o.Dropped())
	assert.Empty(t, o.Reason())
	_, ok := o.Event()
	assert.False(t, ok)
}

type recorder struct {
	observability.NoopMetrics
	mu     sync.Mutex
	stages map[string]int
	errs   int
	runs   []string
}

func (r *recorder) RecordStage(_ context.Context, stage string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stages == nil {
		r.stages = map[string]int{}
	}
	r.stages[stage]++
	if err != nil {
		r.errs++
	}
}

func (r *recorder) RecordChainRun(_ context.Context, passed bool, droppedBy string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if passed {
		r.runs = append(r.runs, "passed")
		return
	}
	r.runs = append(r.runs, "dropped:"+droppedBy)
}

func TestMetricsAndLogging(t *testing.T) {
	rec := &recorder{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c := chain.MustNew([]chain.Stage{
		dedupStage(dedup.New(4)),
		chain.NewStage("explode", func(_ context.Context, evt event.Event) (chain.Outcome, error) {
			if evt.ID == "bad" {
				panic("bad event")
			}
			return chain.Pass(evt), nil
		}),
	}, chain.WithMetrics(rec), chain.WithLogger(logger))

	ctx := context.Background()
	_, _ = c.Run(ctx, event.New(event.TypeCustom, "t", "x", event.WithID("ok")))
	_, _ = c.Run(ctx, event.New(event.TypeCustom, "t", "x", event.WithID("ok")))
	_, _ = c.Run(ctx, event.New(event.TypeCustom, "t", "x", event.WithID("bad")))

	assert.Equal(t, 3, rec.stages["dedup"])
	assert.Equal(t, 2, rec.stages["explode"])
	assert.Equal(t, 1, rec.errs)
	assert.Equal(t, []string{"passed", "dropped:dedup", "dropped:explode"}, rec.runs)

	logs := buf.String()
	assert.Contains(t, logs, "event dropped")
	assert.Contains(t, logs, "reason=duplicate")
	assert.Contains(t, logs, "stage failed")
	assert.True(t, strings.Contains(logs, "stage=explode"))
}

func TestWithMiddleware_Order(t *testing.T) {
	var order []string
	var mu sync.Mutex
	tag := func(label string) chain.Middleware {
		return func(next chain.Stage) chain.Stage {
			return chain.NewStage(next.Name(), func(ctx context.Context, evt event.Event) (chain.Outcome, error) {
				mu.Lock()
				order = append(order, label)
				mu.Unlock()
				return next.Process(ctx, evt)
			})
		}
	}

	var n atomic.Int32
	c := chain.MustNew([]chain.Stage{countingStage("s", &n)}, chain.WithMiddleware(tag("outer"), tag("inner")))
	_, err := c.Run(context.Background(), event.New(event.TypeCustom, "t", "x"))
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.Equal(t, []string{"s"}, c.Stages())
}
