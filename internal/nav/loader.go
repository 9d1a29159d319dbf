package nav

import (
	"fmt"

	"zolo/internal/block"
	"zolo/internal/cache"
	"zolo/internal/logging"
	"zolo/internal/zpath"
)

// Loader resolves zPaths to parsed blocks through the cache orchestrator.
// Documents land in the system tier keyed by file path, so the per-lookup
// mtime check and the workspace watcher both apply.
type Loader struct {
	workspace string
	cache     *cache.Orchestrator
}

// NewLoader creates a loader rooted at the workspace directory.
func NewLoader(workspace string, c *cache.Orchestrator) *Loader {
	return &Loader{workspace: workspace, cache: c}
}

// Workspace returns the workspace root.
func (l *Loader) Workspace() string { return l.workspace }

// Document loads the YAML document a zPath addresses, from cache when the
// cached copy is still fresh.
func (l *Loader) Document(p zpath.ZPath) (*block.Document, error) {
	file := p.FilePath(l.workspace)
	if v, ok := l.cache.Get(file, cache.TierSystem, file); ok {
		if doc, ok := v.(*block.Document); ok {
			return doc, nil
		}
	}
	doc, err := block.LoadDocument(file)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", p, err)
	}
	if err := l.cache.Set(file, doc, cache.TierSystem, file); err != nil {
		logging.NavDebug("document cache store failed for %s: %v", file, err)
	}
	return doc, nil
}

// Block loads the block a zPath addresses.
func (l *Loader) Block(p zpath.ZPath) (*block.Block, error) {
	doc, err := l.Document(p)
	if err != nil {
		return nil, err
	}
	b, ok := doc.Block(p.Block())
	if !ok {
		return nil, fmt.Errorf("block %q not found in %s", p.Block(), p.FilePath(l.workspace))
	}
	return b, nil
}
