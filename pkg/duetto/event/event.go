// Package event defines the Event value that flows through duetto.
//
// Events are immutable once a producer emits them. Stages that need to
// change an event use the With* helpers, which return a modified copy and
// clone any map they touch, so a shared instance is never written to.
package event

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/duetto/pkg/duetto/errors"
)

// Type classifies what an event describes.
type Type string

// Known event types.
const (
	TypeSEC8K         Type = "sec_8k"
	TypeSECS3         Type = "sec_s3"
	TypeSECForm4      Type = "sec_form4"
	TypeSEC6K         Type = "sec_6k"
	TypeFDAApproval   Type = "fda_approval"
	TypeFDAPDUFA      Type = "fda_pdufa"
	TypeFDATrial      Type = "fda_trial"
	TypePRNews        Type = "pr_news"
	TypeStockMovement Type = "stock_movement"
	TypeCustom        Type = "custom"
)

// Event is the unit flowing through the engine.
type Event struct {
	// ID is the dedup identity. It is stable across re-delivery of the
	// same underlying fact.
	ID       string   `json:"id" msgpack:"id"`
	Type     Type     `json:"type" msgpack:"type"`
	Priority Priority `json:"priority" msgpack:"priority"`

	// Source names the producer that emitted the event.
	Source string `json:"source" msgpack:"source"`

	Ticker  string `json:"ticker,omitempty" msgpack:"ticker,omitempty"`
	Company string `json:"company,omitempty" msgpack:"company,omitempty"`
	Title   string `json:"title" msgpack:"title"`
	Summary string `json:"summary,omitempty" msgpack:"summary,omitempty"`
	URL     string `json:"url,omitempty" msgpack:"url,omitempty"`

	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`

	// Payload is producer specific data.
	Payload map[string]any `json:"payload,omitempty" msgpack:"payload,omitempty"`

	// Enrichment holds data attached after collection, e.g. an analysis summary.
	Enrichment map[string]any `json:"enrichment,omitempty" msgpack:"enrichment,omitempty"`
}

// Option configures event creation.
type Option func(*Event)

// WithID sets a specific event ID (default: auto-generated UUID).
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithPriority sets the priority (default: Medium).
func WithPriority(p Priority) Option {
	return func(e *Event) {
		e.Priority = p
	}
}

// WithTimestamp sets the detection time (default: time.Now().UTC()).
func WithTimestamp(t time.Time) Option {
	return func(e *Event) {
		e.CreatedAt = t
	}
}

// WithCompany sets the company and ticker.
func WithCompany(company, ticker string) Option {
	return func(e *Event) {
		e.Company = company
		e.Ticker = ticker
	}
}

// WithContent sets the summary and source URL.
func WithContent(summary, url string) Option {
	return func(e *Event) {
		e.Summary = summary
		e.URL = url
	}
}

// WithPayload sets the payload map. The map is copied.
func WithPayload(payload map[string]any) Option {
	return func(e *Event) {
		e.Payload = maps.Clone(payload)
	}
}

// New creates an event of the given type from source.
func New(typ Type, source, title string, opts ...Option) Event {
	e := Event{
		Type:     typ,
		Priority: Medium,
		Source:   source,
		Title:    title,
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e.Normalize()
}

// Normalize fills in the defaults New would have applied: a generated ID,
// Medium priority, custom type, and the current time.
func (e Event) Normalize() Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Priority == 0 {
		e.Priority = Medium
	}
	if e.Type == "" {
		e.Type = TypeCustom
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

// Validate rejects events that cannot be delivered.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return &errors.ValidationError{Field: "title", Message: "is required"}
	}
	if !e.Priority.Valid() {
		return &errors.ValidationError{Field: "priority", Message: fmt.Sprintf("unknown priority %d", e.Priority)}
	}
	return nil
}

// WithPriority returns a copy of e with the given priority.
func (e Event) WithPriority(p Priority) Event {
	e.Priority = p
	return e
}

// WithSource returns a copy of e attributed to source.
func (e Event) WithSource(source string) Event {
	e.Source = source
	return e
}

// WithPayloadValue returns a copy of e with key set in a cloned payload.
func (e Event) WithPayloadValue(key string, value any) Event {
	payload := make(map[string]any, len(e.Payload)+1)
	maps.Copy(payload, e.Payload)
	payload[key] = value
	e.Payload = payload
	return e
}

// WithEnrichment returns a copy of e with key set in a cloned enrichment map.
func (e Event) WithEnrichment(key string, value any) Event {
	enrichment := make(map[string]any, len(e.Enrichment)+1)
	maps.Copy(enrichment, e.Enrichment)
	enrichment[key] = value
	e.Enrichment = enrichment
	return e
}

// Catalysts returns the catalyst tags stored in the payload, if any.
func (e Event) Catalysts() []string {
	switch v := e.Payload["catalysts"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Text returns the title and summary joined, the text that content rules match against.
func (e Event) Text() string {
	if e.Summary == "" {
		return e.Title
	}
	return e.Title + " " + e.Summary
}

// Fields flattens the event into variables for templates and expressions.
// Payload and enrichment keys are exposed as "payload.<key>" and
// "enrichment.<key>".
func (e Event) Fields() map[string]any {
	fields := map[string]any{
		"id":             e.ID,
		"type":           string(e.Type),
		"priority":       e.Priority.String(),
		"priority_level": int(e.Priority),
		"source":         e.Source,
		"ticker":         e.Ticker,
		"company":        e.Company,
		"title":          e.Title,
		"summary":        e.Summary,
		"url":            e.URL,
		"created_at":     e.CreatedAt.Format(time.RFC3339),
	}
	for k, v := range e.Payload {
		fields["payload."+k] = v
	}
	for k, v := range e.Enrichment {
		fields["enrichment."+k] = v
	}
	if cats := e.Catalysts(); len(cats) > 0 {
		fields["catalysts"] = strings.Join(cats, ",")
	}
	return fields
}
