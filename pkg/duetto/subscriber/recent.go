package subscriber

import (
	"context"
	"sync"

	"github.com/randalmurphal/duetto/pkg/duetto/event"
)

// DefaultRecentCapacity is the history size used by NewRecent when given
// a non-positive capacity.
const DefaultRecentCapacity = 100

// Recent is a subscriber that remembers the most recent events. It backs
// the recent-alerts listing and never fails a send.
type Recent struct {
	mu   sync.RWMutex
	buf  []event.Event
	next int
	full bool
}

var _ Subscriber = (*Recent)(nil)

// NewRecent creates a history holding up to capacity events.
func NewRecent(capacity int) *Recent {
	if capacity < 1 {
		capacity = DefaultRecentCapacity
	}
	return &Recent{buf: make([]event.Event, capacity)}
}

// Send records evt.
func (r *Recent) Send(_ context.Context, evt event.Event) error {
	r.mu.Lock()
	r.buf[r.next] = evt
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
	r.mu.Unlock()
	return nil
}

// List returns up to limit events, newest first. A non-positive limit
// returns everything held.
func (r *Recent) List(limit int) []event.Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := r.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]event.Event, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Len returns the number of events held.
func (r *Recent) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lenLocked()
}

// Capacity returns the maximum number of events held.
func (r *Recent) Capacity() int {
	return len(r.buf)
}

func (r *Recent) lenLocked() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}
