// Package server exposes the engine over HTTP: a websocket feed of
// delivered events, an ingest endpoint, health, metrics, and read-only
// views of recent alerts and dead letters.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randalmurphal/duetto/pkg/duetto"
	"github.com/randalmurphal/duetto/pkg/duetto/deadletter"
	"github.com/randalmurphal/duetto/pkg/duetto/producer"
	"github.com/randalmurphal/duetto/pkg/duetto/subscriber"
)

const (
	// DefaultRecentLimit is used when /alerts/recent has no limit.
	DefaultRecentLimit = 50
	// MaxRecentLimit caps /alerts/recent.
	MaxRecentLimit = 100
	// DefaultWriteTimeout bounds one websocket write.
	DefaultWriteTimeout = 5 * time.Second

	maxEventBody = 1 << 20
)

var errInvalidLimit = errors.New("limit must be a positive integer")

// Deps are the components the server reads from. Engine is required;
// the rest disable their routes' data when nil.
type Deps struct {
	Engine      *duetto.Engine
	Push        *producer.Push
	Recent      *subscriber.Recent
	DeadLetters deadletter.Store
	Gatherer    prometheus.Gatherer
	Logger      *slog.Logger

	// WriteTimeout bounds each websocket write. Zero uses DefaultWriteTimeout.
	WriteTimeout time.Duration
}

// Server serves the duetto HTTP API.
type Server struct {
	deps     Deps
	upgrader websocket.Upgrader
}

// New creates a server over deps.
func New(deps Deps) *Server {
	if deps.WriteTimeout <= 0 {
		deps.WriteTimeout = DefaultWriteTimeout
	}
	return &Server{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/ws", s.handleWebsocket)
	r.Get("/healthz", s.handleHealth)
	r.Post("/events", s.handleIngest)
	r.Get("/alerts/recent", s.handleRecent)
	r.Get("/deadletters", s.handleDeadLetters)

	gatherer := s.deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

type healthResponse struct {
	Status      string                  `json:"status"`
	Subscribers int                     `json:"subscribers"`
	Producers   map[string]duetto.State `json:"producers"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Producers: make(map[string]duetto.State)}
	for _, st := range s.deps.Engine.Status() {
		resp.Producers[st.Name] = st.State
	}
	if subs := s.deps.Engine.Subscribers(); subs != nil {
		resp.Subscribers = subs.Len()
	}
	if !s.deps.Engine.Running() {
		resp.Status = "stopped"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, DefaultRecentLimit, MaxRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.deps.Recent == nil {
		writeJSON(w, http.StatusOK, map[string]any{"alerts": []any{}, "count": 0})
		return
	}
	alerts := s.deps.Recent.List(limit)
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, deadletter.DefaultMaxSize, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if s.deps.DeadLetters == nil {
		writeJSON(w, http.StatusOK, map[string]any{"entries": []any{}, "count": 0})
		return
	}
	entries, err := s.deps.DeadLetters.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []deadletter.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

// parseLimit reads ?limit=N. A zero maxLimit means no cap.
func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errInvalidLimit
	}
	if maxLimit > 0 && n > maxLimit {
		n = maxLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
