package dispatch

import (
	"os"
	"path/filepath"

	"zolo/internal/cache"
	"zolo/internal/logging"
)

// LoadPlugins interprets every .go file under dir through the plugin tier
// and registers the exported functions, making them reachable from
// workflows as &fname calls. A missing directory is not an error; a
// workspace without plugins is the common case. Files that fail to
// interpret are skipped with a warning so one broken plugin cannot take
// the rest down.
func (r *Registry) LoadPlugins(pc *cache.PluginCache, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, ent := range entries {
		if ent.IsDir() || filepath.Ext(ent.Name()) != ".go" {
			continue
		}
		path := filepath.Join(dir, ent.Name())
		mod, err := pc.Load(path)
		if err != nil {
			logging.PluginWarn("skipping %s: %v", path, err)
			continue
		}
		for name, fn := range mod.Exports {
			r.Register(name, Func(fn))
		}
	}
	return nil
}
