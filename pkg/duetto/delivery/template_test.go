package delivery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

func TestLevelFor(t *testing.T) {
	assert.Equal(t, delivery.LevelCritical, delivery.LevelFor(event.High))
	assert.Equal(t, delivery.LevelWarning, delivery.LevelFor(event.Medium))
	assert.Equal(t, delivery.LevelInfo, delivery.LevelFor(event.Low))
	assert.Equal(t, delivery.LevelInfo, delivery.LevelFor(0))
}

func TestTemplateFor(t *testing.T) {
	evt := event.New(event.TypeSEC8K, "sec", "8-K: Acme Corp",
		event.WithCompany("Acme Corp", "ACME"),
		event.WithContent("Entry into a merger agreement", "https://sec.gov/x"),
		event.WithPriority(event.High),
	).WithPayloadValue("catalysts", []string{"merger_acquisition"}).
		WithEnrichment("ai_summary", "Likely positive")

	tmpl := delivery.TemplateFor(evt)
	assert.Equal(t, "8-K: Acme Corp", tmpl.Title)
	assert.Equal(t, "Entry into a merger agreement\n\n🤖 Analysis: Likely positive", tmpl.Body)
	assert.Equal(t, delivery.LevelCritical, tmpl.Level)
	assert.Equal(t, "https://sec.gov/x", tmpl.Link)
	assert.Equal(t, []delivery.Field{
		{Key: "Company", Value: "Acme Corp"},
		{Key: "Ticker", Value: "ACME"},
		{Key: "Source", Value: "sec"},
	}, tmpl.Fields)
	assert.Equal(t, []string{"merger_acquisition"}, tmpl.Extras["catalysts"])
}

func TestTemplateFor_Minimal(t *testing.T) {
	tmpl := delivery.TemplateFor(event.New(event.TypeCustom, "", "hello", event.WithPriority(event.Low)))
	assert.Empty(t, tmpl.Fields)
	assert.Equal(t, "", tmpl.Body)
	assert.Nil(t, tmpl.Extras)
}
