package cache

import (
	"container/list"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"zolo/internal/logging"
)

// PluginFunc is a callback a loaded plugin registers. Plugin functions are
// reachable from workflows as &fname calls.
type PluginFunc func(args ...any) (any, error)

// PluginModule is one loaded plugin: the interpreter that evaluated it and
// the callbacks it registered.
type PluginModule struct {
	Path    string
	Exports map[string]PluginFunc
}

// Plugins are interpreted at runtime instead of compiled and dlopen'd.
// Only stdlib imports are allowed inside plugin files.
var allowedPluginImports = map[string]bool{
	"strings":       true,
	"strconv":       true,
	"fmt":           true,
	"math":          true,
	"regexp":        true,
	"encoding/json": true,
	"time":          true,
	"sort":          true,
	"bytes":         true,
}

// PluginCache is the LRU-bounded tier of loaded plugin modules.
// Unloading a module simply drops the interpreter.
type PluginCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
	counters counters
}

type pluginEntry struct {
	path   string
	module *PluginModule
}

// NewPluginCache creates a plugin tier bounded to capacity modules.
func NewPluginCache(capacity int) *PluginCache {
	if capacity < 1 {
		capacity = 1
	}
	return &PluginCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Load returns the module for path, interpreting the file on first use.
func (c *PluginCache) Load(path string) (*PluginModule, error) {
	c.mu.Lock()
	if el, ok := c.entries[path]; ok {
		c.order.MoveToFront(el)
		c.counters.hits.Add(1)
		mod := el.Value.(*pluginEntry).module
		c.mu.Unlock()
		return mod, nil
	}
	c.counters.misses.Add(1)
	c.mu.Unlock()

	mod, err := interpretPlugin(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = c.order.PushFront(&pluginEntry{path: path, module: mod})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*pluginEntry).path)
		c.counters.evictions.Add(1)
		logging.PluginWarn("plugin tier evicted %s", oldest.Value.(*pluginEntry).path)
	}
	logging.Plugin("Loaded plugin %s (%d exports)", path, len(mod.Exports))
	return mod, nil
}

// Get returns an already-loaded module without loading.
func (c *PluginCache) Get(path string) (*PluginModule, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[path]
	if !ok {
		c.counters.misses.Add(1)
		return nil, false
	}
	c.order.MoveToFront(el)
	c.counters.hits.Add(1)
	return el.Value.(*pluginEntry).module, true
}

// Has reports whether path is loaded.
func (c *PluginCache) Has(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[path]
	return ok
}

// Clear unloads all modules.
func (c *PluginCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// Stats returns a snapshot of the tier counters.
func (c *PluginCache) Stats() TierStats {
	c.mu.Lock()
	n := len(c.entries)
	c.mu.Unlock()
	return c.counters.snapshot(n)
}

// interpretPlugin evaluates a plugin file in a sandboxed yaegi interpreter.
// The file must define: func Exports() map[string]func(...interface{}) (interface{}, error)
func interpretPlugin(path string) (*PluginModule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin %s: %w", path, err)
	}
	if err := validatePluginImports(string(src)); err != nil {
		return nil, fmt.Errorf("plugin %s: %w", path, err)
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}
	if _, err := i.Eval(string(src)); err != nil {
		return nil, fmt.Errorf("plugin evaluation failed for %s: %w", path, err)
	}

	exportsVal, err := i.Eval("main.Exports")
	if err != nil {
		return nil, fmt.Errorf("plugin %s: Exports function not found: %w", path, err)
	}
	exportsFn, ok := exportsVal.Interface().(func() map[string]func(...interface{}) (interface{}, error))
	if !ok {
		return nil, fmt.Errorf("plugin %s: Exports has wrong signature", path)
	}

	exports := make(map[string]PluginFunc)
	for name, fn := range exportsFn() {
		f := fn
		exports[name] = func(args ...any) (any, error) {
			return f(args...)
		}
	}
	return &PluginModule{Path: path, Exports: exports}, nil
}

// validatePluginImports rejects non-whitelisted imports before evaluation.
func validatePluginImports(code string) error {
	var forbidden []string
	inBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			pkg := strings.Trim(trimmed, `"`)
			if pkg != "" && !allowedPluginImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		case strings.HasPrefix(trimmed, "import "):
			pkg := strings.Trim(strings.TrimPrefix(trimmed, "import "), `"`)
			if !allowedPluginImports[pkg] {
				forbidden = append(forbidden, pkg)
			}
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden plugin imports: %v (only a stdlib whitelist is allowed)", forbidden)
	}
	return nil
}
