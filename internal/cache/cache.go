package cache

import (
	"sync"
	"time"

	"github.com/ScottCrass/quakescene/pkg/quake"
)

// CatalogCache caches fetched catalogs by query key so repeated loads of
// the same box and date range skip the network round trip. Entries
// expire after a TTL; a zero TTL disables expiry.
type CatalogCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]catalogEntry
}

type catalogEntry struct {
	events  []quake.Earthquake
	expires time.Time
}

// NewCatalogCache creates a CatalogCache with the given entry lifetime.
func NewCatalogCache(ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]catalogEntry),
	}
}

// Get retrieves a cached catalog by query key. Expired entries are
// dropped on access.
func (c *CatalogCache) Get(key string) ([]quake.Earthquake, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return e.events, true
}

// Set stores a catalog under a query key.
func (c *CatalogCache) Set(key string, events []quake.Earthquake) {
	var expires time.Time
	if c.ttl > 0 {
		expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = catalogEntry{events: events, expires: expires}
}

// Delete removes one cached catalog.
func (c *CatalogCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Reset clears all cached catalogs.
func (c *CatalogCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]catalogEntry)
}

// Len returns the number of cached catalogs, including not yet
// collected expired ones.
func (c *CatalogCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
