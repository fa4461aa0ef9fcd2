package event_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		evt := event.New(event.TypeSEC8K, "sec", "8-K: Acme")

		assert.NotEmpty(t, evt.ID)
		assert.Equal(t, event.Medium, evt.Priority)
		assert.Equal(t, "sec", evt.Source)
		assert.False(t, evt.CreatedAt.IsZero())
	})

	t.Run("options", func(t *testing.T) {
		ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		payload := map[string]any{"form_type": "8-K"}
		evt := event.New(event.TypeSEC8K, "sec", "title",
			event.WithID("abc"),
			event.WithPriority(event.High),
			event.WithTimestamp(ts),
			event.WithCompany("Acme Corp", "ACME"),
			event.WithContent("summary", "https://example.com"),
			event.WithPayload(payload),
		)

		assert.Equal(t, "abc", evt.ID)
		assert.Equal(t, event.High, evt.Priority)
		assert.Equal(t, ts, evt.CreatedAt)
		assert.Equal(t, "ACME", evt.Ticker)
		assert.Equal(t, "https://example.com", evt.URL)

		payload["form_type"] = "changed"
		assert.Equal(t, "8-K", evt.Payload["form_type"], "payload should be copied")
	})
}

func TestEvent_CopyHelpersDoNotMutate(t *testing.T) {
	orig := event.New(event.TypeCustom, "src", "t",
		event.WithPayload(map[string]any{"a": 1}))

	updated := orig.WithPayloadValue("b", 2).WithPriority(event.High).WithEnrichment("ai_summary", "x")

	assert.NotContains(t, orig.Payload, "b")
	assert.Nil(t, orig.Enrichment)
	assert.Equal(t, event.Medium, orig.Priority)

	assert.Equal(t, 1, updated.Payload["a"])
	assert.Equal(t, 2, updated.Payload["b"])
	assert.Equal(t, event.High, updated.Priority)
	assert.Equal(t, "x", updated.Enrichment["ai_summary"])
}

func TestEvent_Catalysts(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    []string
	}{
		{"none", nil, nil},
		{"string slice", map[string]any{"catalysts": []string{"fda_catalyst"}}, []string{"fda_catalyst"}},
		{"any slice", map[string]any{"catalysts": []any{"merger_acquisition", 3}}, []string{"merger_acquisition"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := event.Event{Payload: tt.payload}
			assert.Equal(t, tt.want, evt.Catalysts())
		})
	}
}

func TestEvent_Fields(t *testing.T) {
	evt := event.New(event.TypeSECForm4, "sec", "Form 4: Acme",
		event.WithPriority(event.High),
		event.WithPayload(map[string]any{"form_type": "4", "catalysts": []string{"insider_activity"}}),
	).WithEnrichment("ai_summary", "buying")

	fields := evt.Fields()
	assert.Equal(t, "high", fields["priority"])
	assert.Equal(t, 3, fields["priority_level"])
	assert.Equal(t, "sec_form4", fields["type"])
	assert.Equal(t, "4", fields["payload.form_type"])
	assert.Equal(t, "buying", fields["enrichment.ai_summary"])
	assert.Equal(t, "insider_activity", fields["catalysts"])
}

func TestPriority(t *testing.T) {
	t.Run("ordering", func(t *testing.T) {
		assert.True(t, event.High.AtLeast(event.Medium))
		assert.True(t, event.Medium.AtLeast(event.Medium))
		assert.False(t, event.Low.AtLeast(event.Medium))
	})

	t.Run("parse", func(t *testing.T) {
		for in, want := range map[string]event.Priority{"LOW": event.Low, " medium ": event.Medium, "High": event.High} {
			got, err := event.ParsePriority(in)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
		_, err := event.ParsePriority("urgent")
		assert.Error(t, err)
	})

	t.Run("json", func(t *testing.T) {
		data, err := json.Marshal(struct {
			P event.Priority `json:"p"`
		}{event.High})
		require.NoError(t, err)
		assert.JSONEq(t, `{"p":"high"}`, string(data))

		var out struct {
			P event.Priority `json:"p"`
		}
		require.NoError(t, json.Unmarshal([]byte(`{"p":"low"}`), &out))
		assert.Equal(t, event.Low, out.P)
		assert.Error(t, json.Unmarshal([]byte(`{"p":"bogus"}`), &out))
	})
}

func TestCodecs(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	evt := event.New(event.TypeFDAApproval, "fda", "Approval",
		event.WithID("e1"),
		event.WithPriority(event.High),
		event.WithTimestamp(ts),
		event.WithCompany("Acme Bio", "ABIO"),
	)

	for _, name := range []string{"json", "msgpack"} {
		t.Run(name, func(t *testing.T) {
			codec, err := event.CodecByName(name)
			require.NoError(t, err)
			assert.Equal(t, name, codec.Name())

			data, err := codec.Marshal(evt)
			require.NoError(t, err)

			got, err := codec.Unmarshal(data)
			require.NoError(t, err)
			assert.Equal(t, evt.ID, got.ID)
			assert.Equal(t, event.High, got.Priority)
			assert.Equal(t, "ABIO", got.Ticker)
			assert.True(t, ts.Equal(got.CreatedAt))
		})
	}

	_, err := event.CodecByName("xml")
	assert.Error(t, err)
}

func TestEvent_NormalizeAndValidate(t *testing.T) {
	evt := event.Event{Title: "pushed"}.Normalize()
	assert.NotEmpty(t, evt.ID)
	assert.Equal(t, event.Medium, evt.Priority)
	assert.Equal(t, event.TypeCustom, evt.Type)
	assert.False(t, evt.CreatedAt.IsZero())

	kept := event.Event{ID: "x", Title: "t", Priority: event.High}.Normalize()
	assert.Equal(t, "x", kept.ID)
	assert.Equal(t, event.High, kept.Priority)

	tests := []struct {
		name    string
		evt     event.Event
		wantErr string
	}{
		{name: "valid", evt: evt},
		{name: "missing title", evt: event.Event{Priority: event.Low}, wantErr: "invalid title: is required"},
		{name: "blank title", evt: event.Event{Title: "  ", Priority: event.Low}, wantErr: "invalid title"},
		{name: "bad priority", evt: event.Event{Title: "t", Priority: 7}, wantErr: "invalid priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.evt.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
