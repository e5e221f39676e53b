// Package config loads snipsync configuration.
//
// Sources, lowest to highest precedence:
//  1. Defaults (Default)
//  2. Config file: snipsync.{yaml,toml,json} in . or $HOME/.config/snipsync,
//     or the file passed with --config
//  3. Environment: SNIPSYNC_<SECTION>_<KEY>, e.g. SNIPSYNC_SYNC_DEBOUNCE_DELAY=1s.
//     DATABASE_PATH and CORS_ALLOWED_ORIGINS are honoured as well.
//  4. Command-line flags bound by the caller
//
// Durations use Go syntax ("500ms", "2s").
package config

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/codesnip/snipsync/internal/logging"
	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage"
	"github.com/codesnip/snipsync/internal/writeback"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SNIPSYNC"

// Config is the complete application configuration.
type Config struct {
	// Workspace is the directory holding snippets/ and namespaces/.
	Workspace string `mapstructure:"workspace" toml:"workspace"`

	Sync      writeback.Config `mapstructure:"sync" toml:"sync"`
	Storage   storage.Config   `mapstructure:"storage" toml:"storage"`
	API       APIConfig        `mapstructure:"api" toml:"api"`
	Dashboard DashboardConfig  `mapstructure:"dashboard" toml:"dashboard"`
	Logging   logging.Config   `mapstructure:"logging" toml:"logging"`
}

// APIConfig holds REST backend settings.
type APIConfig struct {
	Host           string `mapstructure:"host" toml:"host"`
	Port           int    `mapstructure:"port" toml:"port"`
	AllowedOrigins string `mapstructure:"allowed_origins" toml:"allowed_origins"`
}

// DashboardConfig holds live dashboard settings.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled" toml:"enabled"`
	Port    int  `mapstructure:"port" toml:"port"`
}

// Default returns the built-in configuration. Every snippet and namespace
// event kind triggers a flush.
func Default() *Config {
	sync := writeback.DefaultConfig()
	sync.WatchedEventKinds = snippets.EventKinds()

	return &Config{
		Workspace: ".",
		Sync:      sync,
		Storage:   storage.DefaultConfig(),
		API: APIConfig{
			Port:           5000,
			AllowedOrigins: "*",
		},
		Dashboard: DashboardConfig{
			Port: 8080,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	if err := c.Sync.Validate(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		return fmt.Errorf("api: invalid port %d", c.API.Port)
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		return fmt.Errorf("dashboard: invalid port %d", c.Dashboard.Port)
	}
	return nil
}

// New returns a viper instance with defaults, env bindings and config file
// search paths set up. file, when non-empty, is used instead of searching.
func New(file string) *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("storage.database_path", EnvPrefix+"_STORAGE_DATABASE_PATH", "DATABASE_PATH")
	_ = v.BindEnv("api.allowed_origins", EnvPrefix+"_API_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("snipsync")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "snipsync"))
		}
	}
	return v
}

// Load reads the config file (a missing file is fine when searching) and
// returns the validated configuration.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return Decode(v)
}

// Decode converts the current viper settings into a validated Config.
func Decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToEventKindsHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

var eventKindsType = reflect.TypeOf([]writeback.EventKind{})

// stringToEventKindsHookFunc decodes a comma-separated string, as set through
// the environment, into an event kind allowlist. Blank entries are dropped.
func stringToEventKindsHookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data any) (any, error) {
		if f.Kind() != reflect.String || t != eventKindsType {
			return data, nil
		}
		return parseEventKinds(data.(string)), nil
	}
}

func parseEventKinds(raw string) []writeback.EventKind {
	kinds := []writeback.EventKind{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			kinds = append(kinds, writeback.EventKind(part))
		}
	}
	return kinds
}

// Watch calls fn with the new configuration whenever the config file
// changes. Invalid edits are logged and ignored.
func Watch(v *viper.Viper, logger *log.Logger, fn func(*Config)) {
	if logger == nil {
		logger = logging.New("config")
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			logger.Printf("Ignoring config change in %s: %v", e.Name, err)
			return
		}
		logger.Printf("Config reloaded from %s", e.Name)
		fn(cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper, d *Config) {
	kinds := make([]string, len(d.Sync.WatchedEventKinds))
	for i, k := range d.Sync.WatchedEventKinds {
		kinds[i] = string(k)
	}

	v.SetDefault("workspace", d.Workspace)

	v.SetDefault("sync.enabled", d.Sync.Enabled)
	v.SetDefault("sync.logging_enabled", d.Sync.LoggingEnabled)
	v.SetDefault("sync.debounce_delay", d.Sync.DebounceDelay)
	v.SetDefault("sync.watched_event_kinds", kinds)
	v.SetDefault("sync.retry_enabled", d.Sync.RetryEnabled)
	v.SetDefault("sync.max_retries", d.Sync.MaxRetries)
	v.SetDefault("sync.retry_delay", d.Sync.RetryDelay)

	v.SetDefault("storage.backend", d.Storage.Backend)
	v.SetDefault("storage.database_path", d.Storage.DatabasePath)
	v.SetDefault("storage.remote_url", d.Storage.RemoteURL)
	v.SetDefault("storage.request_timeout", d.Storage.RequestTimeout)

	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.allowed_origins", d.API.AllowedOrigins)

	v.SetDefault("dashboard.enabled", d.Dashboard.Enabled)
	v.SetDefault("dashboard.port", d.Dashboard.Port)

	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)
}

// Show writes cfg as TOML. Durations are rendered in Go syntax so the output
// can be pasted back into a config file.
func Show(w io.Writer, cfg *Config) error {
	kinds := make([]string, len(cfg.Sync.WatchedEventKinds))
	for i, k := range cfg.Sync.WatchedEventKinds {
		kinds[i] = string(k)
	}

	view := map[string]any{
		"workspace": cfg.Workspace,
		"sync": map[string]any{
			"enabled":             cfg.Sync.Enabled,
			"logging_enabled":     cfg.Sync.LoggingEnabled,
			"debounce_delay":      cfg.Sync.DebounceDelay.String(),
			"watched_event_kinds": kinds,
			"retry_enabled":       cfg.Sync.RetryEnabled,
			"max_retries":         cfg.Sync.MaxRetries,
			"retry_delay":         cfg.Sync.RetryDelay.String(),
		},
		"storage": map[string]any{
			"backend":         cfg.Storage.Backend,
			"database_path":   cfg.Storage.DatabasePath,
			"remote_url":      cfg.Storage.RemoteURL,
			"request_timeout": cfg.Storage.RequestTimeout.String(),
		},
		"api":       cfg.API,
		"dashboard": cfg.Dashboard,
		"logging":   cfg.Logging,
	}

	if err := toml.NewEncoder(w).Encode(view); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}
