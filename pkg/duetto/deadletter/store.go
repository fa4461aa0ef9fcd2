// Package deadletter records deliveries that failed so operators can see
// what was lost. It is a diagnostic log, not event storage: entries are
// never replayed.
package deadletter

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store keeps failed delivery entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Record stores an entry. A missing ID or FailedAt is filled in.
	Record(ctx context.Context, e Entry) error

	// List returns up to limit entries, newest first. A non-positive
	// limit returns everything held.
	List(ctx context.Context, limit int) ([]Entry, error)

	// Count returns the number of entries held.
	Count(ctx context.Context) (int, error)

	// Close releases any resources. Close is idempotent.
	Close() error
}

// Entry describes one failed delivery.
type Entry struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	Source   string    `json:"source"`
	Channel  string    `json:"channel"`
	Phase    string    `json:"phase"`
	Error    string    `json:"error"`
	Body     []byte    `json:"body,omitempty"`
	FailedAt time.Time `json:"failed_at"`
}

// DefaultMaxSize bounds a store when no size is configured.
const DefaultMaxSize = 1000

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("dead-letter store closed")

func normalize(e Entry) Entry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.FailedAt.IsZero() {
		e.FailedAt = time.Now().UTC()
	}
	if e.Body != nil {
		e.Body = append([]byte(nil), e.Body...)
	}
	return e
}
