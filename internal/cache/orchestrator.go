package cache

import (
	"errors"
	"time"

	"zolo/internal/logging"
)

// Tier names. The routing table is the single source of truth:
//
//	system  bounded LRU keyed by string, mtime + TTL invalidation
//	pinned  unbounded alias map, never auto-evicted
//	schema  alias -> live DB handle, explicit eviction only
//	plugin  bounded LRU of interpreted plugin modules
type Tier string

const (
	TierSystem Tier = "system"
	TierPinned Tier = "pinned"
	TierSchema Tier = "schema"
	TierPlugin Tier = "plugin"
	TierAll    Tier = "all"
)

// ErrUnknownTier is returned for unrecognised tier names. Callers treat it
// as recoverable: log and move on.
var ErrUnknownTier = errors.New("unknown cache tier")

// Orchestrator routes get/set/has/clear/stats to the owning tier.
type Orchestrator struct {
	system *SystemCache
	pinned *PinnedCache
	schema *SchemaCache
	plugin *PluginCache
}

// Options sizes the bounded tiers.
type Options struct {
	SystemCapacity int
	SystemTTL      time.Duration
	PluginCapacity int
}

// DefaultOptions returns the sizing used when no config overrides it.
func DefaultOptions() Options {
	return Options{
		SystemCapacity: 256,
		SystemTTL:      5 * time.Minute,
		PluginCapacity: 32,
	}
}

// New creates an orchestrator with all four tiers.
func New(opts Options) *Orchestrator {
	return &Orchestrator{
		system: NewSystemCache(opts.SystemCapacity, opts.SystemTTL),
		pinned: NewPinnedCache(),
		schema: NewSchemaCache(),
		plugin: NewPluginCache(opts.PluginCapacity),
	}
}

// System returns the system (LRU) tier.
func (o *Orchestrator) System() *SystemCache { return o.system }

// Pinned returns the pinned alias tier.
func (o *Orchestrator) Pinned() *PinnedCache { return o.pinned }

// Schema returns the live-handle tier.
func (o *Orchestrator) Schema() *SchemaCache { return o.schema }

// Plugin returns the plugin module tier.
func (o *Orchestrator) Plugin() *PluginCache { return o.plugin }

// Get routes a lookup by tier. For the system tier an optional extra
// argument is the source file path for the mtime check. Unknown tiers
// log and miss (fail-safe: when a tier is uncertain, miss).
func (o *Orchestrator) Get(key string, tier Tier, extra ...string) (any, bool) {
	switch tier {
	case TierSystem:
		filepath := ""
		if len(extra) > 0 {
			filepath = extra[0]
		}
		return o.system.Get(key, filepath)
	case TierPinned:
		return o.pinned.Get(key)
	case TierSchema:
		adapter, ok := o.schema.Get(key)
		if !ok {
			return nil, false
		}
		return adapter, true
	case TierPlugin:
		return o.plugin.Get(key)
	default:
		logging.CacheWarn("get on %v: %v", tier, ErrUnknownTier)
		return nil, false
	}
}

// Set routes a store by tier. For system the extra argument is the source
// file path; for pinned it is the originating zPath.
func (o *Orchestrator) Set(key string, value any, tier Tier, extra ...string) error {
	arg := ""
	if len(extra) > 0 {
		arg = extra[0]
	}
	switch tier {
	case TierSystem:
		o.system.Set(key, value, arg)
		return nil
	case TierPinned:
		o.pinned.Set(key, value, arg)
		return nil
	default:
		// schema and plugin tiers take live handles through their typed
		// accessors, never through the generic router.
		logging.CacheWarn("set on %v: %v", tier, ErrUnknownTier)
		return ErrUnknownTier
	}
}

// Has routes a presence check by tier.
func (o *Orchestrator) Has(key string, tier Tier) bool {
	switch tier {
	case TierSystem:
		return o.system.Has(key)
	case TierPinned:
		return o.pinned.Has(key)
	case TierSchema:
		return o.schema.Has(key)
	case TierPlugin:
		return o.plugin.Has(key)
	default:
		logging.CacheWarn("has on %v: %v", tier, ErrUnknownTier)
		return false
	}
}

// Clear clears one tier, or every tier for TierAll. The pinned pattern
// restricts which aliases are dropped.
func (o *Orchestrator) Clear(tier Tier, pattern string) error {
	switch tier {
	case TierSystem:
		o.system.Clear()
	case TierPinned:
		o.pinned.Clear(pattern)
	case TierSchema:
		o.schema.Clear()
	case TierPlugin:
		o.plugin.Clear()
	case TierAll:
		o.system.Clear()
		o.pinned.Clear(pattern)
		o.schema.Clear()
		o.plugin.Clear()
	default:
		logging.CacheWarn("clear on %v: %v", tier, ErrUnknownTier)
		return ErrUnknownTier
	}
	logging.Cache("Cleared tier %s", tier)
	return nil
}

// Stats returns per-tier counters; TierAll returns every tier keyed by name.
func (o *Orchestrator) Stats(tier Tier) map[string]TierStats {
	switch tier {
	case TierSystem:
		return map[string]TierStats{string(TierSystem): o.system.Stats()}
	case TierPinned:
		return map[string]TierStats{string(TierPinned): o.pinned.Stats()}
	case TierSchema:
		return map[string]TierStats{string(TierSchema): o.schema.Stats()}
	case TierPlugin:
		return map[string]TierStats{string(TierPlugin): o.plugin.Stats()}
	default:
		return map[string]TierStats{
			string(TierSystem): o.system.Stats(),
			string(TierPinned): o.pinned.Stats(),
			string(TierSchema): o.schema.Stats(),
			string(TierPlugin): o.plugin.Stats(),
		}
	}
}
