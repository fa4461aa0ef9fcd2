// Package webhook delivers events as HTTP POST requests.
//
// The body format is chosen per channel: chat cards for Feishu, Discord,
// Slack and Telegram, the raw event as JSON, or a custom body template.
// Non-2xx responses become *errors.HTTPError, so the retry decorator
// treats 429 and 5xx as transient.
package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto/delivery"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/template"
)

// Format selects how an event is rendered into a request body.
type Format string

// Supported formats.
const (
	FormatFeishu   Format = "feishu"
	FormatDiscord  Format = "discord"
	FormatSlack    Format = "slack"
	FormatTelegram Format = "telegram"
	FormatJSON     Format = "json"
	FormatCustom   Format = "custom"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// Channel posts formatted events to a URL.
type Channel struct {
	name        string
	url         string
	format      Format
	client      *http.Client
	headers     map[string]string
	chatID      string
	body        string
	contentType string
	expander    *template.Expander
}

var _ delivery.Channel = (*Channel)(nil)

// Option configures a Channel.
type Option func(*Channel)

// WithFormat sets the body format (default: json).
func WithFormat(f Format) Option {
	return func(c *Channel) { c.format = f }
}

// WithClient sets the HTTP client (default: a client with a 10s timeout).
func WithClient(client *http.Client) Option {
	return func(c *Channel) {
		if client != nil {
			c.client = client
		}
	}
}

// WithHeaders adds request headers.
func WithHeaders(h map[string]string) Option {
	return func(c *Channel) { maps.Copy(c.headers, h) }
}

// WithChatID sets the Telegram chat.
func WithChatID(id string) Option {
	return func(c *Channel) { c.chatID = id }
}

// WithBodyTemplate sets the body for FormatCustom. Placeholders such as
// ${title} or ${payload.form_type|json} are filled from event.Fields.
// An empty contentType means application/json.
func WithBodyTemplate(body, contentType string) Option {
	return func(c *Channel) {
		c.body = body
		if contentType != "" {
			c.contentType = contentType
		}
	}
}

// WithStrictTemplate makes a custom body fail to format when a placeholder
// has no value and no default.
func WithStrictTemplate() Option {
	return func(c *Channel) {
		c.expander = template.NewExpander(template.WithMissingAction(template.MissingError))
	}
}

// New creates a webhook channel posting to url.
func New(name, url string, opts ...Option) (*Channel, error) {
	c := &Channel{
		name:        name,
		url:         url,
		format:      FormatJSON,
		client:      &http.Client{Timeout: 10 * time.Second},
		headers:     make(map[string]string),
		contentType: "application/json",
		expander:    template.NewExpander(template.WithMissingAction(template.MissingEmpty)),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.url == "" {
		return nil, &errors.ValidationError{Field: "url", Message: "webhook url is required"}
	}
	switch c.format {
	case FormatFeishu, FormatDiscord, FormatSlack, FormatJSON:
	case FormatTelegram:
		if c.chatID == "" {
			return nil, &errors.ValidationError{Field: "chat_id", Message: "telegram format needs a chat id"}
		}
	case FormatCustom:
		if strings.TrimSpace(c.body) == "" {
			return nil, &errors.ValidationError{Field: "body", Message: "custom format needs a body template"}
		}
	default:
		return nil, &errors.ValidationError{Field: "format", Message: fmt.Sprintf("unknown webhook format %q", c.format)}
	}
	return c, nil
}

// TelegramURL returns the sendMessage endpoint for a bot token.
func TelegramURL(token string) string {
	return "https://api.telegram.org/bot" + token + "/sendMessage"
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Format renders evt in the configured format.
func (c *Channel) Format(evt event.Event) (delivery.Message, error) {
	var (
		body []byte
		err  error
	)
	switch c.format {
	case FormatFeishu:
		body, err = feishuCard(delivery.TemplateFor(evt))
	case FormatDiscord:
		body, err = discordEmbed(evt)
	case FormatSlack:
		body, err = slackBlocks(evt)
	case FormatTelegram:
		body, err = telegramMessage(c.chatID, evt)
	case FormatCustom:
		var s string
		s, err = c.expander.Expand(c.body, evt.Fields())
		body = []byte(s)
	default:
		return delivery.JSONMessage(evt)
	}
	if err != nil {
		return delivery.Message{}, fmt.Errorf("render %s body: %w", c.format, err)
	}

	ct := "application/json"
	if c.format == FormatCustom {
		ct = c.contentType
	}
	return delivery.Message{Key: evt.Source, ContentType: ct, Body: body}, nil
}

// Send posts msg. The message's Destination overrides the configured URL.
func (c *Channel) Send(ctx context.Context, msg delivery.Message) error {
	url := c.url
	if msg.Destination != "" {
		url = msg.Destination
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if msg.ContentType != "" {
		req.Header.Set("Content-Type", msg.ContentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("post %s: %w", c.name, err)
		}
		return errors.Transient(err, "post "+c.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &errors.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
			Endpoint:   c.name,
		}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

// Close releases idle connections.
func (c *Channel) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
