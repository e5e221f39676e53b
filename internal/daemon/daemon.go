package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage"
	"github.com/codesnip/snipsync/internal/writeback"
)

// Config holds configuration for the daemon.
type Config struct {
	// Workspace is the directory holding snippets/ and namespaces/.
	Workspace string

	// Sync configures the write-back pipeline.
	Sync writeback.Config

	// ShutdownTimeout bounds how long Stop waits for the final flush.
	ShutdownTimeout time.Duration

	// Observer, if set, receives every flush lifecycle notification.
	Observer func(writeback.FlushEvent)

	// Logger for daemon activity
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults for the current directory.
func DefaultConfig() *Config {
	sync := writeback.DefaultConfig()
	sync.WatchedEventKinds = snippets.EventKinds()

	return &Config{
		Workspace:       ".",
		Sync:            sync,
		ShutdownTimeout: 10 * time.Second,
		Logger:          log.New(os.Stderr, "[daemon] ", log.LstdFlags),
	}
}

// Daemon watches a workspace and writes its state back to a storage backend
// whenever snippet or namespace files change.
type Daemon struct {
	snippetsDir   string
	namespacesDir string
	config        *Config

	coord   *writeback.Coordinator
	watcher *FileWatcher

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopErr  error
}

// New creates a daemon that persists to backend. The backend is not closed
// by the daemon.
//
// Use Start() to begin watching and syncing.
func New(backend storage.Backend, config *Config) (*Daemon, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.Workspace == "" {
		return nil, fmt.Errorf("workspace cannot be empty")
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 10 * time.Second
	}

	coord, err := newCoordinator(backend, config.Workspace, config.Sync, config.Logger, config.Observer)
	if err != nil {
		return nil, err
	}

	watcher, err := NewFileWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		snippetsDir:   filepath.Join(config.Workspace, snippets.SnippetsDir),
		namespacesDir: filepath.Join(config.Workspace, snippets.NamespacesDir),
		config:        config,
		coord:         coord,
		watcher:       watcher,
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func newCoordinator(backend storage.Backend, workspace string, cfg writeback.Config, logger *log.Logger, observer func(writeback.FlushEvent)) (*writeback.Coordinator, error) {
	snapshot := func(ctx context.Context) (writeback.Snapshot, error) {
		return snippets.LoadState(workspace, logger)
	}

	opts := []writeback.Option{writeback.WithLogger(logger)}
	if observer != nil {
		opts = append(opts, writeback.WithObserver(observer))
	}

	coord, err := writeback.New(snapshot, storage.Adapter(backend), cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create coordinator: %w", err)
	}
	return coord, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Create the workspace directories if needed
// 2. Request an initial flush of the current workspace
// 3. Watch for file changes and feed them to the coordinator
//
// This blocks until ctx is cancelled, then shuts down with Stop.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	for _, dir := range []string{d.snippetsDir, d.namespacesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	d.wg.Add(1)
	go d.reportErrors()

	if err := d.coord.Flush(); err != nil {
		if !errors.Is(err, writeback.ErrDisabled) {
			_ = d.Stop()
			return fmt.Errorf("initial sync failed: %w", err)
		}
		d.config.Logger.Println("Persistence disabled, skipping initial sync")
	}

	if err := d.watcher.Start(d.snippetsDir, d.namespacesDir); err != nil {
		_ = d.Stop()
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	d.config.Logger.Printf("Watching: %s, %s", d.snippetsDir, d.namespacesDir)

	d.wg.Add(1)
	go d.watchFileEvents()

	select {
	case <-ctx.Done():
	case <-d.ctx.Done():
	}

	return d.Stop()
}

// Stop shuts the daemon down: it stops watching, flushes pending changes
// and waits for background goroutines. Safe to call more than once.
func (d *Daemon) Stop() error {
	d.stopOnce.Do(func() {
		d.config.Logger.Println("Stopping daemon")

		if err := d.watcher.Stop(); err != nil {
			d.config.Logger.Printf("Warning: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.config.ShutdownTimeout)
		defer cancel()
		if err := d.coord.Close(ctx); err != nil {
			d.stopErr = fmt.Errorf("failed to flush pending changes: %w", err)
		}

		d.cancel()
		d.wg.Wait()

		d.config.Logger.Println("Daemon stopped")
	})
	return d.stopErr
}

// UpdateSyncConfig replaces the write-back configuration at runtime.
func (d *Daemon) UpdateSyncConfig(cfg writeback.Config) error {
	if err := d.coord.SetConfig(writeback.PatchFrom(cfg)); err != nil {
		return fmt.Errorf("failed to update sync config: %w", err)
	}
	d.config.Logger.Printf("Sync config updated (enabled=%t, debounce=%s)", cfg.Enabled, cfg.DebounceDelay)
	return nil
}

// Coordinator returns the write-back coordinator driven by the daemon.
func (d *Daemon) Coordinator() *writeback.Coordinator {
	return d.coord
}

// watchFileEvents forwards watcher events to the coordinator.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	events := d.watcher.Events()
	errs := d.watcher.Errors()
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if d.coord.GetConfig().LoggingEnabled {
				d.config.Logger.Printf("%s %s: %s", ev.Type, ev.Op, ev.Path)
			}
			d.coord.OnEvent(ev.Kind())

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// reportErrors logs terminal flush failures until the daemon stops.
func (d *Daemon) reportErrors() {
	defer d.wg.Done()

	for {
		select {
		case err := <-d.coord.Errors():
			d.config.Logger.Printf("Sync failed: %v", err)
		case <-d.ctx.Done():
			return
		}
	}
}

// SyncOnce writes the workspace to backend a single time and reports the
// outcome. Retries follow cfg. It ignores cfg.Enabled.
func SyncOnce(ctx context.Context, backend storage.Backend, workspace string, cfg writeback.Config, logger *log.Logger) error {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	cfg.Enabled = true

	coord, err := newCoordinator(backend, workspace, cfg, logger, nil)
	if err != nil {
		return err
	}
	defer coord.Close(context.Background())

	if err := coord.Flush(); err != nil {
		return fmt.Errorf("failed to start sync: %w", err)
	}
	if err := coord.WaitIdle(ctx); err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}

	if err := coord.Stats().LastError; err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	return nil
}
