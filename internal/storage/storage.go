// Package storage connects the write-back coordinator to a snippet store.
//
// A Backend persists a complete snippets.State. Two backends exist:
//
//   - local:  the embedded SQLite database (package sqlite)
//   - remote: the REST backend reached over HTTP (package remote)
//
// Open picks one from Config; Adapter turns it into a writeback.Storage.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage/remote"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
	"github.com/codesnip/snipsync/internal/writeback"
)

// Backend kinds accepted by Config.Backend.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Backend persists complete snippet states.
type Backend interface {
	SaveState(ctx context.Context, state *snippets.State) error
	Close() error
}

// Config selects and configures a Backend.
type Config struct {
	// Backend is "local" or "remote" (default: local).
	Backend string `mapstructure:"backend" toml:"backend"`

	// DatabasePath is the SQLite file used by the local backend.
	DatabasePath string `mapstructure:"database_path" toml:"database_path"`

	// RemoteURL is the base URL of the REST backend, e.g. http://localhost:5000.
	RemoteURL string `mapstructure:"remote_url" toml:"remote_url"`

	// RequestTimeout bounds each HTTP request of the remote backend.
	RequestTimeout time.Duration `mapstructure:"request_timeout" toml:"request_timeout"`
}

// DefaultConfig returns a local backend under ./data.
func DefaultConfig() Config {
	return Config{
		Backend:        BackendLocal,
		DatabasePath:   "data/snippets.db",
		RemoteURL:      "http://localhost:5000",
		RequestTimeout: 10 * time.Second,
	}
}

// Validate checks that the selected backend has what it needs.
func (c Config) Validate() error {
	switch c.Backend {
	case "", BackendLocal:
		if c.DatabasePath == "" {
			return fmt.Errorf("database_path is required for the local backend")
		}
	case BackendRemote:
		if c.RemoteURL == "" {
			return fmt.Errorf("remote_url is required for the remote backend")
		}
		if c.RequestTimeout < 0 {
			return fmt.Errorf("request_timeout must not be negative")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendLocal, BackendRemote)
	}
	return nil
}

// Open creates the Backend described by cfg.
func Open(cfg Config) (Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid storage config: %w", err)
	}

	switch cfg.Backend {
	case BackendRemote:
		client, err := remote.New(remote.Config{
			BaseURL: cfg.RemoteURL,
			Timeout: cfg.RequestTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create remote backend: %w", err)
		}
		return client, nil
	default:
		store, err := sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open local backend: %w", err)
		}
		return store, nil
	}
}

// Adapter exposes b as a writeback.Storage. Snapshots must be
// *snippets.State.
func Adapter(b Backend) writeback.Storage {
	return writeback.StorageFunc(func(ctx context.Context, snap writeback.Snapshot) error {
		state, ok := snap.(*snippets.State)
		if !ok {
			return fmt.Errorf("unexpected snapshot type %T", snap)
		}
		return b.SaveState(ctx, state)
	})
}
