package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
	"github.com/randalmurphal/duetto/pkg/duetto/subscriber"
)

// wsSubscriber writes broadcast events to one websocket connection.
type wsSubscriber struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
}

var _ subscriber.Subscriber = (*wsSubscriber)(nil)

func (c *wsSubscriber) Send(ctx context.Context, evt event.Event) error {
	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(evt)
}

func (c *wsSubscriber) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// handleWebsocket registers the connection as a subscriber and reads until
// the client goes away. Client messages are ignored.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	subs := s.deps.Engine.Subscribers()
	if subs == nil {
		writeError(w, http.StatusServiceUnavailable, "subscriptions are not enabled")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		return
	}

	sub := &wsSubscriber{conn: conn, writeTimeout: s.deps.WriteTimeout}
	h := subs.Add(sub)
	if h == "" {
		return
	}
	if s.deps.Logger != nil {
		s.deps.Logger.Info("websocket client connected",
			slog.String("subscriber", string(h)),
			slog.String("remote_addr", r.RemoteAddr),
			slog.Int("subscribers", subs.Len()),
		)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	if subs.Remove(h) && s.deps.Logger != nil {
		s.deps.Logger.Info("websocket client disconnected",
			slog.String("subscriber", string(h)),
			slog.Int("subscribers", subs.Len()),
		)
	}
}
