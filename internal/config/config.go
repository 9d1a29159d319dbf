// Package config loads the framework configuration from YAML with
// environment overrides. Environment values always win over file values.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"zolo/internal/logging"
)

// Config is the file-backed framework configuration.
type Config struct {
	Deployment string          `yaml:"deployment"`
	Workspace  string          `yaml:"workspace"`
	Database   DatabaseConfig  `yaml:"database"`
	JWTSecret  string          `yaml:"jwt_secret"`
	WebSocket  WebSocketConfig `yaml:"websocket"`
	Cache      CacheConfig     `yaml:"cache"`
}

// DatabaseConfig holds adapter credentials and the default database file.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// WebSocketConfig configures the bridge.
type WebSocketConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	RequireAuth    bool     `yaml:"require_auth"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections"`
}

// CacheConfig sizes the cache tiers.
type CacheConfig struct {
	SystemCapacity int `yaml:"system_capacity"`
	SystemTTL      int `yaml:"system_ttl_seconds"`
	PluginCapacity int `yaml:"plugin_capacity"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Deployment: "development",
		Workspace:  ".",
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   "zolo.db",
		},
		WebSocket: WebSocketConfig{
			Host:           "127.0.0.1",
			Port:           8765,
			AllowedOrigins: []string{"http://localhost", "http://127.0.0.1"},
			MaxConnections: 256,
		},
		Cache: CacheConfig{
			SystemCapacity: 256,
			SystemTTL:      300,
			PluginCapacity: 32,
		},
	}
}

// Load reads the YAML config at path, merges it over the defaults, and
// applies environment overrides. A missing file is not an error; the
// defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		logging.Config("Loaded config from %s", path)
	case os.IsNotExist(err):
		logging.Config("No config file at %s; using defaults", path)
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if v := firstEnv("ZOLO_DEPLOYMENT", "ZOLO_ENV"); v != "" {
		c.Deployment = v
	}
	if v := os.Getenv("ZOLO_DB_USERNAME"); v != "" {
		c.Database.Username = v
	}
	if v := os.Getenv("ZOLO_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("ZOLO_JWT_SECRET"); v != "" {
		c.JWTSecret = v
	}
	if v := os.Getenv("WEBSOCKET_HOST"); v != "" {
		c.WebSocket.Host = v
	}
	if v := os.Getenv("WEBSOCKET_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.WebSocket.Port = port
		} else {
			logging.Config("Ignoring invalid WEBSOCKET_PORT %q", v)
		}
	}
	if v := os.Getenv("WEBSOCKET_REQUIRE_AUTH"); v != "" {
		c.WebSocket.RequireAuth = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("WEBSOCKET_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		c.WebSocket.AllowedOrigins = origins
	}
	if v := os.Getenv("WEBSOCKET_MAX_CONNECTIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.WebSocket.MaxConnections = n
		}
	}
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// Hash returns a stable sha256 over the serialised config, used to detect
// config drift between connected clients and the server.
func (c *Config) Hash() string {
	data, err := yaml.Marshal(c)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save writes the config back to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
