package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"zolo/internal/auth"
	"zolo/internal/bridge"
	"zolo/internal/cache"
	"zolo/internal/config"
	"zolo/internal/data"
	"zolo/internal/dispatch"
	"zolo/internal/display"
	"zolo/internal/nav"
	"zolo/internal/session"
	"zolo/internal/wizard"
	"zolo/internal/zpath"
)

// Version is stamped at build time.
var Version = "0.1.0-dev"

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "zolo",
	Short: "zolo - declarative application framework core",
	Long: `zolo executes declarative YAML workflows: ordered keyed blocks of
typed steps run against pluggable data, display, navigation, and auth
subsystems. Terminal mode runs a workflow interactively; serve exposes the
engine over a WebSocket bridge with progressive chunked rendering.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runtime bundles the wired subsystems a command needs.
type runtime struct {
	cfg    *config.Config
	sess   *session.Session
	cache  *cache.Orchestrator
	loader *nav.Loader
	nav    *nav.Navigator
	reg    *dispatch.Registry
}

func buildRuntime() (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if workspace != "" {
		cfg.Workspace = workspace
	}

	orch := cache.New(cache.Options{
		SystemCapacity: cfg.Cache.SystemCapacity,
		SystemTTL:      time.Duration(cfg.Cache.SystemTTL) * time.Second,
		PluginCapacity: cfg.Cache.PluginCapacity,
	})
	sess := session.New()
	loader := nav.NewLoader(cfg.Workspace, orch)
	reg := dispatch.NewRegistry()
	if err := reg.LoadPlugins(orch.Plugin(), filepath.Join(cfg.Workspace, "plugins")); err != nil {
		return nil, fmt.Errorf("failed to load workspace plugins: %w", err)
	}
	return &runtime{
		cfg:    cfg,
		sess:   sess,
		cache:  orch,
		loader: loader,
		nav:    nav.NewNavigator(sess, loader),
		reg:    reg,
	}, nil
}

// engineFor builds a loop engine bound to a display collaborator.
func (rt *runtime) engineFor(d display.Display) *wizard.Engine {
	disp := dispatch.New(d, rt.reg)
	return wizard.New(rt.sess, disp, rt.nav, auth.NewLocal(), d, rt.cache)
}

// runCmd executes a workflow in terminal mode
var runCmd = &cobra.Command{
	Use:   "run [zpath]",
	Short: "Run a workflow block in terminal mode",
	Long: `Loads the block the zPath addresses (e.g. "@.UI.zUI.index") and
executes it with the sequential strategy on the current terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		p, err := zpath.Parse(args[0])
		if err != nil {
			return err
		}
		b, err := rt.loader.Block(p)
		if err != nil {
			return err
		}
		rt.sess.SetMode(session.ModeTerminal)
		rt.sess.SetTriple(p.Triple())
		rt.nav.Crumbs().EnterScope(p.Scope(), p.Block())

		engine := rt.engineFor(display.NewTerminal())
		acc, err := engine.Handle(cmd.Context(), b)
		if err != nil {
			return err
		}
		logger.Info("workflow finished", zap.String("zpath", args[0]), zap.Int("steps", acc.Len()))
		return nil
	},
}

// serveCmd starts the WebSocket bridge
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve workflows over the WebSocket bridge",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		rt.sess.SetMode(session.ModeBifrost)

		factsPath := filepath.Join(rt.cfg.Workspace, ".zolo", "machine.yaml")
		_ = os.MkdirAll(filepath.Dir(factsPath), 0o755)
		if facts, err := config.LoadMachineFacts(factsPath); err != nil {
			logger.Warn("machine facts unavailable", zap.Error(err))
		} else {
			logger.Info("machine facts",
				zap.String("os", facts.OS),
				zap.String("arch", facts.Arch),
				zap.Int("cpus", facts.CPUs))
		}

		watcher, err := cache.NewWatcher(rt.cfg.Workspace, rt.cache.System())
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()

		catalog := data.NewStaticCatalog()
		server := bridge.NewServer(bridge.Options{
			Config:    rt.cfg.WebSocket,
			Version:   Version,
			Cache:     rt.cache,
			Catalog:   catalog,
			Session:   rt.sess,
			Loader:    rt.loader,
			NewEngine: rt.engineFor,
		})

		errCh := make(chan error, 1)
		go func() { errCh <- server.Start(ctx) }()

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return server.Shutdown(10 * time.Second)
		case err := <-errCh:
			return err
		}
	},
}

// cacheCmd inspects and clears the cache tiers
var cacheCmd = &cobra.Command{
	Use:   "cache [stats|clear] [tier]",
	Short: "Inspect or clear the cache tiers",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime()
		if err != nil {
			return err
		}
		tier := cache.TierAll
		if len(args) > 1 {
			tier = cache.Tier(args[1])
		}
		switch args[0] {
		case "stats":
			for name, st := range rt.cache.Stats(tier) {
				fmt.Printf("%-8s entries=%d hits=%d misses=%d evictions=%d invalidations=%d\n",
					name, st.Entries, st.Hits, st.Misses, st.Evictions, st.Invalidations)
			}
			return nil
		case "clear":
			return rt.cache.Clear(tier, "*")
		}
		return fmt.Errorf("unknown cache action: %s", args[0])
	},
}

// migrateCmd inspects and applies schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate [status|apply] <db> [plan.yaml]",
	Short: "Inspect or apply schema migrations against a SQLite database",
	Long: `status prints the migration ledger. apply reads a YAML plan
(schema_version plus a list of DDL statements), asks for confirmation,
and applies it in one transaction; plans already recorded as applied are
skipped.`,
	Args: cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		adapter := data.NewSQLiteAdapter(args[1])
		if err := adapter.Connect(cmd.Context()); err != nil {
			return err
		}
		defer func() { _ = adapter.Disconnect() }()
		m, err := data.NewMigrator(adapter.DB())
		if err != nil {
			return err
		}
		switch args[0] {
		case "status":
			history, err := m.History()
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Println("no migrations recorded")
				return nil
			}
			for _, rec := range history {
				fmt.Printf("v%-3d %-8s %s  +%dt/-%dt +%dc/-%dc  %s\n",
					rec.SchemaVersion, rec.Status, rec.AppliedAt.Format(time.RFC3339),
					rec.TablesAdded, rec.TablesDropped, rec.ColumnsAdded, rec.ColumnsDropped,
					rec.ErrorMessage)
			}
			return nil
		case "apply":
			if len(args) < 3 {
				return fmt.Errorf("apply needs a plan file")
			}
			raw, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			var plan data.MigrationPlan
			if err := yaml.Unmarshal(raw, &plan); err != nil {
				return fmt.Errorf("failed to parse plan %s: %w", args[2], err)
			}
			hash := data.SchemaHash(map[string]any{
				"version":    plan.SchemaVersion,
				"statements": strings.Join(plan.Statements, ";"),
			})
			return m.Apply(cmd.Context(), plan, hash, display.NewTerminal())
		}
		return fmt.Errorf("unknown migrate action: %s", args[0])
	},
}

// versionCmd prints the version
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the zolo version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("zolo %s\n", Version)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "zolo.yaml", "path to the config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace root (overrides config)")

	rootCmd.AddCommand(runCmd, serveCmd, cacheCmd, migrateCmd, versionCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
