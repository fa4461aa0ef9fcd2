package webhook

import (
	"net/http"
	"time"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
)

// FromConfig builds a webhook channel from component options:
//
//	url, format, headers, timeout
//	chat_id, bot_token      (telegram; bot_token fills in url)
//	body, content_type      (custom)
//	strict                  (custom; fail on unresolved placeholders)
func FromConfig(name string, opts config.Config) (*Channel, error) {
	url := opts.String("url", "")
	if url == "" && opts.Has("bot_token") {
		url = TelegramURL(opts.String("bot_token", ""))
	}

	options := []Option{
		WithFormat(Format(opts.String("format", string(FormatJSON)))),
		WithClient(&http.Client{Timeout: opts.Duration("timeout", 10*time.Second)}),
		WithHeaders(opts.StringMap("headers")),
		WithChatID(opts.String("chat_id", "")),
		WithBodyTemplate(opts.String("body", ""), opts.String("content_type", "")),
	}
	if opts.Bool("strict", false) {
		options = append(options, WithStrictTemplate())
	}
	return New(name, url, options...)
}
