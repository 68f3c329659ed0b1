package memory

import (
	"sync"
	"time"
)

// retrieveCacheTTL is how long a cached retrieval result stays valid.
const retrieveCacheTTL = 5 * time.Minute

// retrieveCache is a read-through cache for the keyword retrieval path.
//
// Invalidation is coarse: any mutation clears every entry for the owning
// manager. Correctness over granularity.
type retrieveCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	items     []*Item
	expiresAt time.Time
}

func newRetrieveCache(ttl time.Duration) *retrieveCache {
	return &retrieveCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// get returns the cached result for key, if present and unexpired.
// The returned slice is a copy; callers may reorder or truncate it
// without disturbing the cached entry or other concurrent readers.
func (c *retrieveCache) get(key string) ([]*Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return append([]*Item(nil), entry.items...), true
}

// put stores a result under key with the cache TTL. The entry keeps
// its own copy of the slice so the caller's return value stays
// independent of the cache.
func (c *retrieveCache) put(key string, items []*Item) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		items:     append([]*Item(nil), items...),
		expiresAt: time.Now().Add(c.ttl),
	}
}

// invalidate clears every entry.
func (c *retrieveCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}
