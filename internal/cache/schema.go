package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"zolo/internal/data"
	"zolo/internal/logging"
)

// SchemaEntry holds a live adapter handle. Handles are never serialised
// into the session map; only metadata is mirrored there.
type SchemaEntry struct {
	Alias       string
	Adapter     data.Adapter
	BackendKind string
	ConnectedAt time.Time
}

// SchemaCache is the tier of active DB connections. At most one live
// handle exists per alias; eviction is explicit only.
type SchemaCache struct {
	mu       sync.Mutex
	entries  map[string]*SchemaEntry
	counters counters
}

// NewSchemaCache creates an empty schema tier.
func NewSchemaCache() *SchemaCache {
	return &SchemaCache{entries: make(map[string]*SchemaEntry)}
}

// Set stores a live handle under alias. An existing handle for the alias
// is disconnected first so at most one stays live.
func (c *SchemaCache) Set(alias string, adapter data.Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[alias]; ok {
		if err := old.Adapter.Disconnect(); err != nil {
			logging.CacheWarn("schema tier: disconnect of replaced handle %s failed: %v", alias, err)
		}
	}
	c.entries[alias] = &SchemaEntry{
		Alias:       alias,
		Adapter:     adapter,
		BackendKind: adapter.Kind(),
		ConnectedAt: time.Now(),
	}
}

// Get returns the live adapter for alias.
func (c *SchemaCache) Get(alias string) (data.Adapter, bool) {
	c.mu.Lock()
	ent, ok := c.entries[alias]
	c.mu.Unlock()
	if !ok {
		c.counters.misses.Add(1)
		return nil, false
	}
	c.counters.hits.Add(1)
	return ent.Adapter, true
}

// Has reports whether a handle exists for alias.
func (c *SchemaCache) Has(alias string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[alias]
	return ok
}

// Begin starts a transaction on the alias's handle.
func (c *SchemaCache) Begin(ctx context.Context, alias string) error {
	adapter, ok := c.Get(alias)
	if !ok {
		return fmt.Errorf("schema tier: %w: %s", data.ErrNoAdapter, alias)
	}
	return adapter.Begin(ctx)
}

// Commit commits the transaction on the alias's handle.
func (c *SchemaCache) Commit(alias string) error {
	adapter, ok := c.Get(alias)
	if !ok {
		return fmt.Errorf("schema tier: %w: %s", data.ErrNoAdapter, alias)
	}
	return adapter.Commit()
}

// Rollback rolls back the transaction on the alias's handle.
func (c *SchemaCache) Rollback(alias string) error {
	adapter, ok := c.Get(alias)
	if !ok {
		return fmt.Errorf("schema tier: %w: %s", data.ErrNoAdapter, alias)
	}
	return adapter.Rollback()
}

// TransactionActive reports whether the alias's handle has a transaction.
func (c *SchemaCache) TransactionActive(alias string) bool {
	adapter, ok := c.Get(alias)
	return ok && adapter.InTransaction()
}

// Remove disconnects and drops the handle for alias.
func (c *SchemaCache) Remove(alias string) error {
	c.mu.Lock()
	ent, ok := c.entries[alias]
	delete(c.entries, alias)
	c.mu.Unlock()
	if !ok {
		return nil
	}
	return ent.Adapter.Disconnect()
}

// Clear disconnects every handle in a best-effort loop. Individual
// disconnect failures are logged, never propagated.
func (c *SchemaCache) Clear() {
	c.mu.Lock()
	entries := c.entries
	c.entries = make(map[string]*SchemaEntry)
	c.mu.Unlock()

	for alias, ent := range entries {
		if err := ent.Adapter.Disconnect(); err != nil {
			logging.CacheWarn("schema tier: disconnect failed for %s: %v", alias, err)
		}
	}
	if len(entries) > 0 {
		logging.CacheDebug("schema tier cleared (%d handles)", len(entries))
	}
}

// Aliases lists the connected aliases.
func (c *SchemaCache) Aliases() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.entries))
	for alias := range c.entries {
		out = append(out, alias)
	}
	return out
}

// Meta returns the serialisable metadata for alias, suitable for
// mirroring into the session map.
func (c *SchemaCache) Meta(alias string) (map[string]any, bool) {
	c.mu.Lock()
	ent, ok := c.entries[alias]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return map[string]any{
		"alias":              ent.Alias,
		"backend_kind":       ent.BackendKind,
		"connected_at":       ent.ConnectedAt,
		"transaction_active": ent.Adapter.InTransaction(),
	}, true
}

// Stats returns a snapshot of the tier counters.
func (c *SchemaCache) Stats() TierStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return c.counters.snapshot(n)
}
