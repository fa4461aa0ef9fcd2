package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/randalmurphal/duetto/pkg/duetto/errors"
	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// maxErrorBody caps how much of a failed response is kept in HTTPError.
const maxErrorBody = 4 << 10

// HTTPFetch returns a FetchFunc that GETs url and decodes a JSON array of
// events. Events are normalized, so the endpoint may omit IDs and
// timestamps.
func HTTPFetch(client *http.Client, url string, headers map[string]string) FetchFunc {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) ([]event.Event, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, &errors.ValidationError{Field: "url", Message: err.Error()}
		}
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Transient(err, "fetch "+url)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &errors.HTTPError{
				StatusCode: resp.StatusCode,
				Body:       strings.TrimSpace(string(body)),
				Endpoint:   url,
			}
		}

		var events []event.Event
		if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
			return nil, fmt.Errorf("decode events from %s: %w", url, err)
		}
		for i := range events {
			events[i] = events[i].Normalize()
		}
		return events, nil
	}
}
