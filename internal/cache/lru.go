// Package cache implements the three-tier cache orchestrator: the system
// LRU with mtime invalidation, user-pinned aliases, the schema tier of
// live DB handles, and the LRU-bounded plugin tier. Tiers never leak
// entries to each other; each tier is mutated only by its orchestrator.
package cache

import (
	"container/list"
	"os"
	"sync"
	"time"

	"zolo/internal/logging"
)

// TTL bounds for the system tier (seconds). The bridge's set_cache_ttl
// event rejects values outside this range.
const (
	MinTTLSeconds = 1
	MaxTTLSeconds = 3600
)

type lruEntry struct {
	key        string
	value      any
	sourcePath string
	mtime      time.Time
	storedAt   time.Time
}

// SystemCache is the bounded auto-cache. Eviction is strict LRU; a lookup
// that presents a source file path additionally compares the stored mtime
// against the file's current mtime and invalidates on mismatch.
type SystemCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front = most recent
	entries  map[string]*list.Element
	counters counters
}

// NewSystemCache creates an LRU cache with the given capacity and default TTL.
func NewSystemCache(capacity int, ttl time.Duration) *SystemCache {
	if capacity < 1 {
		capacity = 1
	}
	return &SystemCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Set stores value under key, recording the source file's current mtime
// when filepath is non-empty.
func (c *SystemCache) Set(key string, value any, filepath string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var mtime time.Time
	if filepath != "" {
		if fi, err := os.Stat(filepath); err == nil {
			mtime = fi.ModTime()
		}
	}

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*lruEntry)
		ent.value = value
		ent.sourcePath = filepath
		ent.mtime = mtime
		ent.storedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	ent := &lruEntry{key: key, value: value, sourcePath: filepath, mtime: mtime, storedAt: time.Now()}
	c.entries[key] = c.order.PushFront(ent)

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.removeElement(oldest)
		c.counters.evictions.Add(1)
		logging.CacheDebug("system tier evicted %s", oldest.Value.(*lruEntry).key)
	}
}

// Get returns the cached value. Presenting a filepath triggers the mtime
// check; a changed file invalidates the entry and misses. Expired TTL
// entries also miss.
func (c *SystemCache) Get(key string, filepath string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.counters.misses.Add(1)
		return nil, false
	}
	ent := el.Value.(*lruEntry)

	if c.ttl > 0 && time.Since(ent.storedAt) > c.ttl {
		c.removeElement(el)
		c.counters.invalidations.Add(1)
		c.counters.misses.Add(1)
		return nil, false
	}

	if filepath != "" {
		fi, err := os.Stat(filepath)
		if err != nil || !fi.ModTime().Equal(ent.mtime) {
			c.removeElement(el)
			c.counters.invalidations.Add(1)
			c.counters.misses.Add(1)
			logging.CacheDebug("system tier invalidated %s (mtime changed)", key)
			return nil, false
		}
	}

	c.order.MoveToFront(el)
	c.counters.hits.Add(1)
	return ent.value, true
}

// Has reports presence without touching recency or the mtime check.
func (c *SystemCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Invalidate drops the entry for key, if present.
func (c *SystemCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeElement(el)
		c.counters.invalidations.Add(1)
	}
}

// InvalidateBySource drops every entry loaded from the given file path.
func (c *SystemCache) InvalidateBySource(filepath string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, el := range c.entries {
		if el.Value.(*lruEntry).sourcePath == filepath {
			c.removeElement(el)
			c.counters.invalidations.Add(1)
			n++
		}
	}
	return n
}

// Clear drops all entries.
func (c *SystemCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// SetTTL updates the default TTL. Callers validate the range first.
func (c *SystemCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// TTL returns the current default TTL.
func (c *SystemCache) TTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

// Stats returns a snapshot of the tier counters.
func (c *SystemCache) Stats() TierStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return c.counters.snapshot(n)
}

func (c *SystemCache) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*lruEntry).key)
}
