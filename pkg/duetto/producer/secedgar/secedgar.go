// Package secedgar polls the SEC EDGAR "current filings" Atom feeds and
// emits one event per new filing.
//
// Priority comes from keywords in the filing title and summary: deal and
// regulatory language is high, financing and partnership language is
// medium, and everything else is low.
package secedgar

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/dedup"
	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/producer"
	"github.com/randalmurphal/duetto/pkg/duetto/template"
)

const (
	// DefaultFeedURL is the EDGAR current-filings feed; ${form} is the form type.
	DefaultFeedURL = "https://www.sec.gov/cgi-bin/browse-edgar?action=getcurrent&type=${form|urlquery}&company=&dateb=&owner=include&count=100&output=atom"

	// DefaultUserAgent identifies the client. EDGAR rejects requests without one.
	DefaultUserAgent = "duetto/1.0 (contact@example.com)"

	DefaultInterval  = 30 * time.Second
	DefaultRateLimit = 100 * time.Millisecond
	DefaultSeenSize  = 10000

	summaryLimit = 500
	maxErrorBody = 4 << 10
)

// DefaultForms are the form types polled when none are configured.
var DefaultForms = []string{"8-K", "S-3", "4"}

var (
	highKeywords = []string{
		"merger", "acquisition", "acquire", "buyout", "tender offer",
		"definitive agreement", "fda approval", "fda clearance",
		"bankruptcy", "chapter 11", "chapter 7",
	}
	mediumKeywords = []string{
		"offering", "placement", "securities", "registration",
		"partnership", "license", "contract", "agreement",
	}

	// "8-K - Acme Corp (0001234567) (Filer)"
	companyPattern = regexp.MustCompile(`- (.+?) \(\d+\)`)
)

// Collector fetches and parses the EDGAR feeds. Use NewProducer to run it
// under the engine.
type Collector struct {
	name      string
	forms     []string
	feedURL   string
	userAgent string
	rateLimit time.Duration
	client    *http.Client
	parser    *gofeed.Parser
	expander  *template.Expander
	seen      *dedup.Cache
	logger    *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector)

// WithForms sets the form types to poll.
func WithForms(forms ...string) Option {
	return func(c *Collector) { c.forms = forms }
}

// WithFeedURL sets the feed URL template. ${form} expands to the form type.
func WithFeedURL(url string) Option {
	return func(c *Collector) { c.feedURL = url }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Collector) { c.userAgent = ua }
}

// WithRateLimit sets the pause between feeds within one poll.
func WithRateLimit(d time.Duration) Option {
	return func(c *Collector) { c.rateLimit = d }
}

// WithClient sets the HTTP client.
func WithClient(client *http.Client) Option {
	return func(c *Collector) { c.client = client }
}

// WithSeenSize bounds how many filing IDs are remembered across polls.
func WithSeenSize(n int) Option {
	return func(c *Collector) { c.seen = dedup.New(n) }
}

// WithLogger sets the logger for per-feed failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) { c.logger = logger }
}

// New creates a collector that emits events with source name.
func New(name string, opts ...Option) *Collector {
	c := &Collector{
		name:      name,
		forms:     DefaultForms,
		feedURL:   DefaultFeedURL,
		userAgent: DefaultUserAgent,
		rateLimit: DefaultRateLimit,
		client:    &http.Client{Timeout: 30 * time.Second},
		parser:    gofeed.NewParser(),
		expander:  template.NewExpander(template.WithMissingAction(template.MissingError)),
		seen:      dedup.New(DefaultSeenSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewProducer wraps a collector in a Poller.
func NewProducer(c *Collector, interval time.Duration, opts ...producer.PollerOption) duetto.Producer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return producer.NewPoller(c.name, interval, c.Fetch, opts...)
}

// Fetch polls every feed once and returns filings not seen before. A feed
// that fails is logged and skipped; an error is returned only when every
// feed failed.
func (c *Collector) Fetch(ctx context.Context) ([]event.Event, error) {
	var (
		out  []event.Event
		errs []error
	)
	for i, form := range c.forms {
		if i > 0 && c.rateLimit > 0 {
			if err := sleep(ctx, c.rateLimit); err != nil {
				return out, err
			}
		}
		events, err := c.fetchFeed(ctx, form)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			errs = append(errs, err)
			if c.logger != nil {
				c.logger.Warn("feed fetch failed",
					slog.String("producer", c.name),
					slog.String("form", form),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		out = append(out, events...)
	}
	if len(errs) > 0 && len(errs) == len(c.forms) {
		return out, fmt.Errorf("all feeds failed: %w", errs[0])
	}
	return out, nil
}

func (c *Collector) fetchFeed(ctx context.Context, form string) ([]event.Event, error) {
	url, err := c.expander.Expand(c.feedURL, map[string]any{"form": form})
	if err != nil {
		return nil, &errors.ValidationError{Field: "feed_url", Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &errors.ValidationError{Field: "feed_url", Message: err.Error()}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/atom+xml")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Transient(err, "fetch "+form+" feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &errors.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Endpoint:   url,
		}
	}

	feed, err := c.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s feed: %w", form, err)
	}

	var events []event.Event
	for _, item := range feed.Items {
		id := filingID(item)
		if c.seen.ContainsOrInsert(id) {
			continue
		}
		events = append(events, c.toEvent(form, id, item))
	}
	return events, nil
}

func (c *Collector) toEvent(form, id string, item *gofeed.Item) event.Event {
	company := companyName(item.Title)
	summary := cleanSummary(item.Description)

	ts := time.Now().UTC()
	if item.UpdatedParsed != nil {
		ts = item.UpdatedParsed.UTC()
	}

	return event.New(formType(form), c.name, fmt.Sprintf("%s: %s", form, company),
		event.WithID(id),
		event.WithPriority(priorityOf(item.Title, summary)),
		event.WithCompany(company, ""),
		event.WithContent(summary, item.Link),
		event.WithTimestamp(ts),
		event.WithPayload(map[string]any{"form_type": form}),
	)
}

// filingID is stable for a feed entry across polls.
func filingID(item *gofeed.Item) string {
	sum := md5.Sum([]byte(item.GUID + item.Title))
	return hex.EncodeToString(sum[:])[:16]
}

func companyName(title string) string {
	if m := companyPattern.FindStringSubmatch(title); m != nil {
		return strings.TrimSpace(m[1])
	}
	return title
}

func formType(form string) event.Type {
	switch form {
	case "S-3":
		return event.TypeSECS3
	case "4":
		return event.TypeSECForm4
	default:
		return event.TypeSEC8K
	}
}

func priorityOf(title, summary string) event.Priority {
	text := strings.ToLower(title + " " + summary)
	for _, kw := range highKeywords {
		if strings.Contains(text, kw) {
			return event.High
		}
	}
	for _, kw := range mediumKeywords {
		if strings.Contains(text, kw) {
			return event.Medium
		}
	}
	return event.Low
}

// cleanSummary strips markup and joins the remaining text with single
// spaces, capped at summaryLimit characters.
func cleanSummary(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return truncate(s, summaryLimit)
	}
	return truncate(strings.Join(textParts(doc.Selection, nil), " "), summaryLimit)
}

func textParts(s *goquery.Selection, parts []string) []string {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			if t := strings.Join(strings.Fields(child.Text()), " "); t != "" {
				parts = append(parts, t)
			}
			return
		}
		parts = textParts(child, parts)
	})
	return parts
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
