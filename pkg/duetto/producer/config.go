package producer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// StaticFromConfig builds a Static producer from options:
//
//	events:   list of event objects (title required)
//	interval: pause between events
func StaticFromConfig(name string, opts config.Config) (*Static, error) {
	raw := opts.Any("events", nil)
	if raw == nil {
		return nil, &errors.ValidationError{Field: "events", Message: "is required"}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("static producer %s: %w", name, err)
	}
	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("static producer %s: decode events: %w", name, err)
	}
	for i := range events {
		events[i] = events[i].Normalize()
		if err := events[i].Validate(); err != nil {
			return nil, fmt.Errorf("static producer %s: event %d: %w", name, i, err)
		}
	}
	return NewStatic(name, events...).WithInterval(opts.Duration("interval", 0)), nil
}

// PollerFromConfig builds a Poller that fetches JSON events over HTTP:
//
//	url:             endpoint returning a JSON array of events
//	interval:        poll interval (default 1m)
//	timeout:         request timeout (default 10s)
//	headers:         extra request headers
//	tolerate_errors: keep polling after permanent errors
func PollerFromConfig(name string, opts config.Config, logger *slog.Logger) (*Poller, error) {
	url := opts.String("url", "")
	if url == "" {
		return nil, &errors.ValidationError{Field: "url", Message: "is required"}
	}
	client := &http.Client{Timeout: opts.Duration("timeout", 10*time.Second)}

	pollOpts := []PollerOption{WithPollerLogger(logger)}
	if opts.Bool("tolerate_errors", false) {
		pollOpts = append(pollOpts, TolerateErrors())
	}
	fetch := HTTPFetch(client, url, opts.StringMap("headers"))
	return NewPoller(name, opts.Duration("interval", DefaultPollInterval), fetch, pollOpts...), nil
}
