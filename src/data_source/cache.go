package datasource

import (
	"sync"
	"time"
)

// Cache holds one feed's items newest first. Items only ever grow at the
// head; the tail is trimmed when maxItems is set.
type Cache[T any] struct {
	mu           sync.Mutex
	items        []T
	updatedCount int
	lastFetch    time.Time
	maxItems     int
	key          func(T) string
}

// -----------------------------------------------------------------------------

// NewCache creates an empty cache. maxItems <= 0 means unbounded.
func NewCache[T any](key func(T) string, maxItems int) *Cache[T] {
	return &Cache[T]{key: key, maxItems: maxItems}
}

// -----------------------------------------------------------------------------

// Apply merges a newest-first snapshot and returns the new items.
//
// The snapshot is scanned for the key of the current head. Items before it
// are new and are prepended. If the head key is absent the whole snapshot
// replaces the cache. An empty snapshot changes nothing but the fetch time.
func (c *Cache[T]) Apply(snapshot []T, fetchedAt time.Time) []T {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastFetch = fetchedAt

	if len(snapshot) == 0 {
		c.updatedCount = 0
		return nil
	}

	idx := -1
	if len(c.items) > 0 {
		headKey := c.key(c.items[0])
		for i, it := range snapshot {
			if c.key(it) == headKey {
				idx = i
				break
			}
		}
	}

	var delta []T
	switch {
	case idx == 0:
		c.updatedCount = 0
		return nil
	case idx > 0:
		delta = append([]T(nil), snapshot[:idx]...)
		next := make([]T, 0, len(delta)+len(c.items))
		next = append(next, delta...)
		next = append(next, c.items...)
		c.items = next
	default:
		delta = append([]T(nil), snapshot...)
		c.items = append([]T(nil), snapshot...)
	}

	if c.maxItems > 0 && len(c.items) > c.maxItems {
		c.items = c.items[:c.maxItems:c.maxItems]
	}
	c.updatedCount = len(delta)
	return delta
}

// -----------------------------------------------------------------------------

// Read returns the items, the size of the last delta and the last fetch
// time, then resets the delta counter.
func (c *Cache[T]) Read() ([]T, int, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := c.updatedCount
	c.updatedCount = 0
	return c.items, count, c.lastFetch
}

// -----------------------------------------------------------------------------

// Items returns the current items without touching the counter. The slice
// must not be modified.
func (c *Cache[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items
}

func (c *Cache[T]) Head() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	if len(c.items) == 0 {
		return zero, false
	}
	return c.items[0], true
}

func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[T]) LastFetch() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFetch
}
