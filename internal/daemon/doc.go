// Package daemon provides file system watching and write-back for a snipsync
// workspace.
//
// The daemon monitors snippets/*.json and namespaces/*.json (YAML is accepted
// too) and feeds every change into a writeback.Coordinator, which debounces
// bursts of edits and mirrors the whole workspace into the configured
// storage backend.
//
// # Architecture
//
//   - FileWatcher: Cross-platform file system event monitoring using fsnotify
//   - Daemon: Owns the watcher and the coordinator, and handles shutdown
//   - SyncOnce: One-shot write-back used by the sync command
//
// # Usage
//
//	backend, err := storage.Open(storage.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	cfg := daemon.DefaultConfig()
//	cfg.Workspace = "/path/to/workspace"
//
//	d, err := daemon.New(backend, cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := d.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Hidden files are ignored, so editors' swap files and the temporary files
// written by snippets.WriteSnippetFile never trigger a flush on their own.
package daemon
