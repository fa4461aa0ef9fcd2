package deadletter

import (
	"context"
	"sync"
)

// MemoryStore is a bounded in-memory store. When full, the oldest entry
// is overwritten. Data is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	next    int
	full    bool
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding up to maxSize entries.
// A non-positive maxSize uses DefaultMaxSize.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize < 1 {
		maxSize = DefaultMaxSize
	}
	return &MemoryStore{entries: make([]Entry, maxSize)}
}

// Record implements Store.
func (m *MemoryStore) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.entries[m.next] = normalize(e)
	m.next = (m.next + 1) % len(m.entries)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, limit int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}
	n := m.lenLocked()
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for i := 1; i <= limit; i++ {
		out = append(out, m.entries[(m.next-i+len(m.entries))%len(m.entries)])
	}
	return out, nil
}

// Count implements Store.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrStoreClosed
	}
	return m.lenLocked(), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}

func (m *MemoryStore) lenLocked() int {
	if m.full {
		return len(m.entries)
	}
	return m.next
}
