package secedgar

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/duetto/pkg/duetto/config"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

const feed8K = `<?xml version="1.0" encoding="UTF-8" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Latest Filings</title>
<updated>2024-03-01T16:05:12-05:00</updated>
<entry>
<title>8-K - ACME CORP (0001234567) (Filer)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/1234567/000123456724000001-index.htm"/>
<summary type="html"> &lt;b&gt;Filed:&lt;/b&gt; 2024-03-01 &lt;b&gt;AccNo:&lt;/b&gt; 0001234567-24-000001&lt;br&gt;Item 1.01: Entry into a Material Definitive Agreement</summary>
<updated>2024-03-01T16:04:00-05:00</updated>
<id>urn:tag:sec.gov,2008:accession-number=0001234567-24-000001</id>
</entry>
<entry>
<title>8-K - WIDGET INC (0007654321) (Filer)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/Archives/edgar/data/7654321/000765432124000002-index.htm"/>
<summary type="html">&lt;b&gt;Filed:&lt;/b&gt; 2024-03-01 Item 7.01: Regulation FD Disclosure</summary>
<updated>2024-03-01T16:03:00-05:00</updated>
<id>urn:tag:sec.gov,2008:accession-number=0007654321-24-000002</id>
</entry>
</feed>`

const feedS3 = `<?xml version="1.0" encoding="UTF-8" ?>
<feed xmlns="http://www.w3.org/2005/Atom">
<title>Latest Filings</title>
<entry>
<title>S-3 - BIOTECH LTD (0001112223) (Filer)</title>
<link rel="alternate" type="text/html" href="https://www.sec.gov/s3"/>
<summary type="html">Shelf registration</summary>
<updated>2024-03-01T15:00:00-05:00</updated>
<id>urn:tag:sec.gov,2008:accession-number=0001112223-24-000003</id>
</entry>
</feed>`

func newFeedServer(t *testing.T, status map[string]int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "test-agent admin@example.com", r.Header.Get("User-Agent"))
		form := r.URL.Query().Get("type")
		if code, ok := status[form]; ok {
			w.WriteHeader(code)
			return
		}
		w.Header().Set("Content-Type", "application/atom+xml")
		switch form {
		case "8-K":
			fmt.Fprint(w, feed8K)
		case "S-3":
			fmt.Fprint(w, feedS3)
		default:
			fmt.Fprint(w, `<feed xmlns="http://www.w3.org/2005/Atom"><title>empty</title></feed>`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestCollector(srv *httptest.Server, opts ...Option) *Collector {
	base := []Option{
		WithFeedURL(srv.URL + "/browse?type=${form|urlquery}"),
		WithUserAgent("test-agent admin@example.com"),
		WithRateLimit(time.Millisecond),
		WithClient(srv.Client()),
	}
	return New("sec_edgar", append(base, opts...)...)
}

func TestCollector_Fetch(t *testing.T) {
	srv, hits := newFeedServer(t, nil)
	c := newTestCollector(srv)

	events, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), hits.Load())
	require.Len(t, events, 3)

	acme := events[0]
	assert.Equal(t, event.TypeSEC8K, acme.Type)
	assert.Equal(t, "8-K: ACME CORP", acme.Title)
	assert.Equal(t, "ACME CORP", acme.Company)
	assert.Equal(t, "sec_edgar", acme.Source)
	assert.Equal(t, event.High, acme.Priority, "definitive agreement is high priority")
	assert.Equal(t, "Filed: 2024-03-01 AccNo: 0001234567-24-000001 Item 1.01: Entry into a Material Definitive Agreement", acme.Summary)
	assert.Equal(t, "https://www.sec.gov/Archives/edgar/data/1234567/000123456724000001-index.htm", acme.URL)
	assert.Equal(t, "8-K", acme.Payload["form_type"])
	assert.Len(t, acme.ID, 16)
	assert.Equal(t, time.Date(2024, 3, 1, 21, 4, 0, 0, time.UTC), acme.CreatedAt)

	assert.Equal(t, event.Low, events[1].Priority)

	s3 := events[2]
	assert.Equal(t, event.TypeSECS3, s3.Type)
	assert.Equal(t, event.Medium, s3.Priority, "registration is medium priority")

	t.Run("seen filings are not re-emitted", func(t *testing.T) {
		again, err := c.Fetch(context.Background())
		require.NoError(t, err)
		assert.Empty(t, again)
	})
}

func TestCollector_FeedFailures(t *testing.T) {
	t.Run("one failing feed is skipped", func(t *testing.T) {
		srv, _ := newFeedServer(t, map[string]int{"8-K": http.StatusForbidden})
		events, err := newTestCollector(srv).Fetch(context.Background())
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "S-3: BIOTECH LTD", events[0].Title)
	})

	t.Run("all feeds failing is an error", func(t *testing.T) {
		srv, _ := newFeedServer(t, map[string]int{"8-K": http.StatusServiceUnavailable})
		_, err := newTestCollector(srv, WithForms("8-K")).Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "all feeds failed")
	})
}

func TestHelpers(t *testing.T) {
	t.Run("company name", func(t *testing.T) {
		assert.Equal(t, "ACME CORP", companyName("8-K - ACME CORP (0001234567) (Filer)"))
		assert.Equal(t, "no match here", companyName("no match here"))
	})

	t.Run("priority", func(t *testing.T) {
		tests := []struct {
			title, summary string
			want           event.Priority
		}{
			{"8-K - X (1)", "Completion of Acquisition", event.High},
			{"8-K - X (1)", "Chapter 11 petition", event.High},
			{"S-3 - X (1)", "Offering of common stock", event.Medium},
			{"4 - X (1)", "Statement of changes", event.Low},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, priorityOf(tt.title, tt.summary), tt.summary)
		}
	})

	t.Run("form types", func(t *testing.T) {
		assert.Equal(t, event.TypeSEC8K, formType("8-K"))
		assert.Equal(t, event.TypeSECS3, formType("S-3"))
		assert.Equal(t, event.TypeSECForm4, formType("4"))
		assert.Equal(t, event.TypeSEC8K, formType("10-Q"))
	})

	t.Run("summary cap", func(t *testing.T) {
		long := ""
		for range 600 {
			long += "é"
		}
		assert.Len(t, []rune(cleanSummary("<p>"+long+"</p>")), summaryLimit)
		assert.Empty(t, cleanSummary(""))
	})
}

func TestFromConfig(t *testing.T) {
	srv, hits := newFeedServer(t, nil)
	p, err := FromConfig("edgar", config.New(map[string]any{
		"forms":      []any{"S-3"},
		"user_agent": "test-agent admin@example.com",
		"feed_url":   srv.URL + "/browse?type=${form}",
		"interval":   "1h",
	}), nil)
	require.NoError(t, err)
	assert.Equal(t, "edgar", p.Name())

	var got []event.Event
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err = p.Collect(ctx, func(_ context.Context, evt event.Event) error {
		got = append(got, evt)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), hits.Load())
	require.Len(t, got, 1)
	assert.Equal(t, "edgar", got[0].Source)
}
