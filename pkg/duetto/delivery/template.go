package delivery

import (
	"fmt"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Level is the visual severity of a notification.
type Level string

// Notification levels.
const (
	LevelInfo     Level = "info"
	LevelSuccess  Level = "success"
	LevelWarning  Level = "warning"
	LevelError    Level = "error"
	LevelCritical Level = "critical"
)

// LevelFor maps an event priority to a notification level.
func LevelFor(p event.Priority) Level {
	switch p {
	case event.High:
		return LevelCritical
	case event.Medium:
		return LevelWarning
	default:
		return LevelInfo
	}
}

// Field is a labeled value shown alongside a notification body.
type Field struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Template is a transport-neutral notification. Chat channels render it
// into their own card or block formats.
type Template struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Level    Level          `json:"level"`
	Link     string         `json:"link,omitempty"`
	LinkText string         `json:"link_text,omitempty"`
	Fields   []Field        `json:"fields,omitempty"`
	Extras   map[string]any `json:"extras,omitempty"`
}

// TemplateFor builds the standard notification for evt. An analysis line
// is appended to the body when the event carries an "ai_summary"
// enrichment.
func TemplateFor(evt event.Event) Template {
	var fields []Field
	if evt.Company != "" {
		fields = append(fields, Field{Key: "Company", Value: evt.Company})
	}
	if evt.Ticker != "" {
		fields = append(fields, Field{Key: "Ticker", Value: evt.Ticker})
	}
	if evt.Source != "" {
		fields = append(fields, Field{Key: "Source", Value: evt.Source})
	}

	body := evt.Summary
	if summary, ok := evt.Enrichment["ai_summary"]; ok && summary != nil {
		body += fmt.Sprintf("\n\n🤖 Analysis: %v", summary)
	}

	t := Template{
		Title:  evt.Title,
		Body:   body,
		Level:  LevelFor(evt.Priority),
		Link:   evt.URL,
		Fields: fields,
	}
	if cats := evt.Catalysts(); len(cats) > 0 {
		t.Extras = map[string]any{"catalysts": cats}
	}
	return t
}
