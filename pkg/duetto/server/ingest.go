package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/producer"
)

// handleIngest accepts one JSON event and submits it through the push
// producer. It responds once the engine has processed the event.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.deps.Push == nil {
		writeError(w, http.StatusServiceUnavailable, "ingest is not enabled")
		return
	}

	evt, err := decodeEvent(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.deps.Push.Submit(r.Context(), evt); err != nil {
		if errors.Is(err, producer.ErrNotRunning) {
			writeError(w, http.StatusServiceUnavailable, "engine is not running")
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"id": evt.ID})
}

func decodeEvent(body io.Reader) (event.Event, error) {
	var evt event.Event
	dec := json.NewDecoder(body)
	if err := dec.Decode(&evt); err != nil {
		return event.Event{}, fmt.Errorf("decode event: %w", err)
	}
	evt = evt.Normalize()
	if err := evt.Validate(); err != nil {
		return event.Event{}, err
	}
	return evt, nil
}
