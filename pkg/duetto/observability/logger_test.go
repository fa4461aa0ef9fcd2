package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJSONLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogProducerStart(nil, "p")
		LogProducerExit(nil, "p", "failed", 0, errors.New("x"))
		LogStageError(nil, "s", "e", errors.New("x"))
		LogDropped(nil, "s", "e", "r")
		LogDelivered(nil, "c", "e", 1)
		LogDeliveryError(nil, "c", "send", "e", errors.New("x"))
		LogSubscriberRemoved(nil, "h", errors.New("x"))
		LogShutdown(nil, 1, nil)
	})
	assert.Nil(t, EnrichLogger(nil, "producer", "p"))
}

func TestLogHelpers_Fields(t *testing.T) {
	tests := []struct {
		name    string
		log     func(*slog.Logger)
		level   string
		msg     string
		wantKey string
		wantVal any
	}{
		{
			name:    "producer failed",
			log:     func(l *slog.Logger) { LogProducerExit(l, "sec", "failed", 3, errors.New("feed down")) },
			level:   "ERROR",
			msg:     "producer failed",
			wantKey: "producer",
			wantVal: "sec",
		},
		{
			name:    "producer stopped",
			log:     func(l *slog.Logger) { LogProducerExit(l, "sec", "stopped", 3, nil) },
			level:   "INFO",
			msg:     "producer stopped",
			wantKey: "emitted",
			wantVal: float64(3),
		},
		{
			name:    "stage error",
			log:     func(l *slog.Logger) { LogStageError(l, "dedup", "e1", errors.New("no id")) },
			level:   "WARN",
			msg:     "stage failed",
			wantKey: "stage",
			wantVal: "dedup",
		},
		{
			name:    "delivery error",
			log:     func(l *slog.Logger) { LogDeliveryError(l, "feishu", "send", "e1", errors.New("502")) },
			level:   "ERROR",
			msg:     "delivery failed",
			wantKey: "channel",
			wantVal: "feishu",
		},
		{
			name:    "subscriber removed",
			log:     func(l *slog.Logger) { LogSubscriberRemoved(l, "h-1", errors.New("closed")) },
			level:   "WARN",
			msg:     "subscriber removed",
			wantKey: "subscriber",
			wantVal: "h-1",
		},
		{
			name:    "shutdown with abandoned",
			log:     func(l *slog.Logger) { LogShutdown(l, 5, []string{"slow"}) },
			level:   "WARN",
			msg:     "engine stopped with abandoned producers",
			wantKey: "abandoned",
			wantVal: []any{"slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.log(newJSONLogger(&buf))

			lines := decodeLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.level, lines[0]["level"])
			assert.Equal(t, tt.msg, lines[0]["msg"])
			assert.Equal(t, tt.wantVal, lines[0][tt.wantKey])
		})
	}
}

func TestEnrichLogger(t *testing.T) {
	var buf bytes.Buffer
	EnrichLogger(newJSONLogger(&buf), "channel", "slack").Info("hello")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "slack", lines[0]["channel"])
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	assert.GreaterOrEqual(t, done(), 0.0)
}
