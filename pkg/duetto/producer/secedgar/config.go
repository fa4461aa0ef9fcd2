package secedgar

import (
	"log/slog"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/producer"
)

// FromConfig builds the EDGAR producer from options:
//
//	forms:           form types (default 8-K, S-3, 4)
//	user_agent:      User-Agent header
//	interval:        poll interval (default 30s)
//	rate_limit:      pause between feeds (default 100ms)
//	feed_url:        feed URL template with ${form}
//	seen_size:       filings remembered across polls (default 10000)
//	tolerate_errors: keep polling after permanent errors (default true)
func FromConfig(name string, opts config.Config, logger *slog.Logger) (duetto.Producer, error) {
	c := New(name,
		WithForms(opts.StringSlice("forms", DefaultForms)...),
		WithUserAgent(opts.String("user_agent", DefaultUserAgent)),
		WithRateLimit(opts.Duration("rate_limit", DefaultRateLimit)),
		WithFeedURL(opts.String("feed_url", DefaultFeedURL)),
		WithSeenSize(opts.Int("seen_size", DefaultSeenSize)),
		WithLogger(logger),
	)

	pollOpts := []producer.PollerOption{producer.WithPollerLogger(logger)}
	if opts.Bool("tolerate_errors", true) {
		pollOpts = append(pollOpts, producer.TolerateErrors())
	}
	return NewProducer(c, opts.Duration("interval", DefaultInterval), pollOpts...), nil
}
