package data

import "sync"

// StaticCatalog is the bundled Catalog: model schemas registered at boot
// (typically from the workspace's data model documents) and served to the
// bridge's discover/introspect/get_schema events.
type StaticCatalog struct {
	mu      sync.RWMutex
	order   []string
	schemas map[string]map[string]any
}

// NewStaticCatalog creates an empty catalog.
func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{schemas: make(map[string]map[string]any)}
}

// Register adds or replaces a model schema.
func (c *StaticCatalog) Register(model string, schema map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.schemas[model]; !ok {
		c.order = append(c.order, model)
	}
	c.schemas[model] = schema
}

// Models lists registered model names in registration order.
func (c *StaticCatalog) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.order...)
}

// Schema returns the schema for a model.
func (c *StaticCatalog) Schema(model string) (map[string]any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.schemas[model]
	return s, ok
}
