// Package logsink is a delivery channel that writes notifications to a
// structured logger. It is meant for local runs and demos.
package logsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// Channel logs each notification as one record.
type Channel struct {
	name   string
	logger *slog.Logger
}

var _ delivery.Channel = (*Channel)(nil)

// New creates a log channel. A nil logger uses slog.Default().
func New(name string, logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{name: name, logger: logger.With(slog.String("channel", name))}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Format renders the standard notification template as JSON.
func (c *Channel) Format(evt event.Event) (delivery.Message, error) {
	body, err := json.Marshal(delivery.TemplateFor(evt))
	if err != nil {
		return delivery.Message{}, err
	}
	return delivery.Message{
		Key:         evt.Source,
		ContentType: "application/json",
		Body:        body,
		Headers:     map[string]string{"event_id": evt.ID},
	}, nil
}

// Send writes msg to the logger at a level matching the notification.
func (c *Channel) Send(ctx context.Context, msg delivery.Message) error {
	var t delivery.Template
	if err := json.Unmarshal(msg.Body, &t); err != nil {
		return fmt.Errorf("decode notification: %w", err)
	}

	attrs := []slog.Attr{
		slog.String("event_id", msg.Headers["event_id"]),
		slog.String("severity", string(t.Level)),
	}
	if t.Body != "" {
		attrs = append(attrs, slog.String("body", t.Body))
	}
	if t.Link != "" {
		attrs = append(attrs, slog.String("link", t.Link))
	}
	for _, f := range t.Fields {
		attrs = append(attrs, slog.String(f.Key, f.Value))
	}
	c.logger.LogAttrs(ctx, slogLevel(t.Level), t.Title, attrs...)
	return nil
}

func slogLevel(l delivery.Level) slog.Level {
	switch l {
	case delivery.LevelCritical, delivery.LevelError:
		return slog.LevelError
	case delivery.LevelWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
