package cache

import (
	"path"
	"sync"
	"time"
)

// PinnedEntry is a user-loaded alias. Pinned entries are never evicted
// automatically; they are cleared only by explicit request or pattern match.
type PinnedEntry struct {
	Alias    string
	Value    any
	ZPath    string
	LoadedAt time.Time
}

// PinnedCache is the unbounded alias tier.
type PinnedCache struct {
	mu       sync.RWMutex
	entries  map[string]*PinnedEntry
	counters counters
}

// NewPinnedCache creates an empty pinned tier.
func NewPinnedCache() *PinnedCache {
	return &PinnedCache{entries: make(map[string]*PinnedEntry)}
}

// Set pins value under alias, recording the zPath it was loaded from.
func (c *PinnedCache) Set(alias string, value any, zpath string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[alias] = &PinnedEntry{Alias: alias, Value: value, ZPath: zpath, LoadedAt: time.Now()}
}

// Get returns the pinned value for alias.
func (c *PinnedCache) Get(alias string) (any, bool) {
	c.mu.RLock()
	ent, ok := c.entries[alias]
	c.mu.RUnlock()
	if !ok {
		c.counters.misses.Add(1)
		return nil, false
	}
	c.counters.hits.Add(1)
	return ent.Value, true
}

// Has reports whether alias is pinned.
func (c *PinnedCache) Has(alias string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[alias]
	return ok
}

// Clear removes aliases matching pattern (path.Match syntax); an empty
// pattern removes everything. Returns the number removed.
func (c *PinnedCache) Clear(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for alias := range c.entries {
		if pattern == "" {
			delete(c.entries, alias)
			n++
			continue
		}
		if ok, err := path.Match(pattern, alias); err == nil && ok {
			delete(c.entries, alias)
			n++
		}
	}
	return n
}

// List returns all pinned entries with their age, alias-keyed.
func (c *PinnedCache) List() map[string]time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]time.Duration, len(c.entries))
	for alias, ent := range c.entries {
		out[alias] = time.Since(ent.LoadedAt)
	}
	return out
}

// Stats returns a snapshot of the tier counters.
func (c *PinnedCache) Stats() TierStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return c.counters.snapshot(n)
}
