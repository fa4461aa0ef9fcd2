// Package dedup provides a bounded membership cache for event identities.
//
// Recency is insertion order: a lookup never refreshes an entry. When the
// cache is full the oldest inserted key is evicted to make room.
package dedup

import "sync"

// Cache is a fixed-capacity FIFO set of keys. It is safe for concurrent use.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ring     []string // insertion order, oldest at head
	head     int
	size     int
	index    map[string]struct{}
}

// New creates a cache holding at most capacity keys. Capacities below 1 are
// raised to 1.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ring:     make([]string, capacity),
		index:    make(map[string]struct{}, capacity),
	}
}

// ContainsOrInsert reports whether key was already present. If it was not,
// the key is inserted, evicting the oldest key when full. The check and the
// insert happen under one lock, so among concurrent callers with the same key
// exactly one observes false.
func (c *Cache) ContainsOrInsert(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.index[key]; ok {
		return true
	}

	if c.size == c.capacity {
		oldest := c.ring[c.head]
		delete(c.index, oldest)
		c.ring[c.head] = ""
		c.head = (c.head + 1) % c.capacity
		c.size--
	}

	tail := (c.head + c.size) % c.capacity
	c.ring[tail] = key
	c.index[key] = struct{}{}
	c.size++
	return false
}

// Contains reports whether key is present without inserting it.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.index[key]
	return ok
}

// Len returns the number of keys held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Capacity returns the maximum number of keys.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Reset removes every key.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.ring)
	clear(c.index)
	c.head = 0
	c.size = 0
}
