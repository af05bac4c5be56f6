package intake

import (
	"container/list"
	"sync"
)

// DedupCache is a bounded membership cache over event identity keys, local to
// one service instance. Eviction is strict insertion order: once the capacity
// is exceeded the oldest-inserted key is dropped. Marking a key that is
// already present never refreshes its position.
//
// The cache is an instance-scoped fast path only; the distributed claim is
// the authoritative cross-instance guard, so losing entries on restart or
// eviction is an accepted weakening, not a correctness violation.
type DedupCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]struct{}
	order    *list.List // of string keys, oldest at the front
}

// NewDedupCache creates a cache holding at most capacity keys.
func NewDedupCache(capacity int) *DedupCache {
	if capacity < 1 {
		capacity = 1
	}
	return &DedupCache{
		capacity: capacity,
		entries:  make(map[string]struct{}, capacity),
		order:    list.New(),
	}
}

// Seen reports whether the key has been marked within the cache's lifetime.
func (c *DedupCache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// MarkSeen records the key, evicting the oldest-inserted entry if the cache
// is full. Marking an existing key is a no-op.
func (c *DedupCache) MarkSeen(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	c.entries[key] = struct{}{}
	c.order.PushBack(key)

	if len(c.entries) > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(string))
	}
}

// Len returns the current number of cached keys.
func (c *DedupCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
