package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
	"github.com/codesnip/snipsync/internal/writeback"
)

// recordingBackend remembers every state it was asked to save.
type recordingBackend struct {
	mu     sync.Mutex
	saves  []*snippets.State
	failN  int
	closed bool
}

func (b *recordingBackend) SaveState(ctx context.Context, state *snippets.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failN > 0 {
		b.failN--
		return errors.New("backend unavailable")
	}
	b.saves = append(b.saves, state.Clone())
	return nil
}

func (b *recordingBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *recordingBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.saves)
}

func (b *recordingBackend) last() *snippets.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.saves) == 0 {
		return nil
	}
	return b.saves[len(b.saves)-1]
}

func testConfig(workspace string) *Config {
	cfg := DefaultConfig()
	cfg.Workspace = workspace
	cfg.Sync.DebounceDelay = 50 * time.Millisecond
	cfg.Sync.RetryDelay = 10 * time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)
	return cfg
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func writeSnippet(t *testing.T, workspace, id, title string) {
	t.Helper()
	sn := &snippets.Snippet{ID: id, Title: title, Code: "x", Language: "go", CreatedAt: 1, UpdatedAt: 2}
	if err := snippets.WriteSnippetFile(filepath.Join(workspace, snippets.SnippetsDir), sn); err != nil {
		t.Fatalf("WriteSnippetFile() failed: %v", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Error("New(nil) should fail")
	}

	cfg := testConfig("")
	if _, err := New(&recordingBackend{}, cfg); err == nil {
		t.Error("New() with empty workspace should fail")
	}

	cfg = testConfig(t.TempDir())
	cfg.Sync.MaxRetries = -1
	if _, err := New(&recordingBackend{}, cfg); err == nil {
		t.Error("New() with invalid sync config should fail")
	}
}

func TestDaemon_SyncsChanges(t *testing.T) {
	workspace := t.TempDir()
	backend := &recordingBackend{}

	d, err := New(backend, testConfig(workspace))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	// The initial flush writes the empty workspace.
	waitFor(t, "initial sync", func() bool { return backend.count() >= 1 })
	if got := backend.last(); len(got.Snippets) != 0 || len(got.Namespaces) != 1 {
		t.Errorf("initial state = %d snippets, %d namespaces; want 0, 1", len(got.Snippets), len(got.Namespaces))
	}

	// A burst of edits is debounced into a single flush of the final state.
	before := backend.count()
	writeSnippet(t, workspace, "s1", "first")
	writeSnippet(t, workspace, "s2", "second")
	writeSnippet(t, workspace, "s1", "edited")

	waitFor(t, "debounced sync", func() bool {
		last := backend.last()
		return backend.count() > before && len(last.Snippets) == 2
	})
	titles := map[string]string{}
	for _, sn := range backend.last().Snippets {
		titles[sn.ID] = sn.Title
	}
	if titles["s1"] != "edited" || titles["s2"] != "second" {
		t.Errorf("synced titles = %v", titles)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return after cancel")
	}

	if backend.closed {
		t.Error("daemon must not close the backend")
	}
}

func TestDaemon_StopFlushesPending(t *testing.T) {
	workspace := t.TempDir()
	backend := &recordingBackend{}

	cfg := testConfig(workspace)
	cfg.Sync.DebounceDelay = time.Hour

	d, err := New(backend, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()
	waitFor(t, "initial sync", func() bool { return backend.count() == 1 })

	writeSnippet(t, workspace, "s1", "pending")
	waitFor(t, "scheduled flush", func() bool {
		return d.Coordinator().State() == writeback.StateScheduled
	})

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Errorf("Start() returned %v", err)
	}

	if backend.count() != 2 {
		t.Fatalf("saves = %d, want 2", backend.count())
	}
	if got := backend.last(); len(got.Snippets) != 1 {
		t.Errorf("final state has %d snippets, want 1", len(got.Snippets))
	}
}

func TestDaemon_Disabled(t *testing.T) {
	workspace := t.TempDir()
	backend := &recordingBackend{}

	cfg := testConfig(workspace)
	cfg.Sync.Enabled = false

	d, err := New(backend, cfg)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()

	waitFor(t, "workspace directories", func() bool {
		_, err := os.Stat(filepath.Join(workspace, snippets.NamespacesDir))
		return err == nil
	})
	writeSnippet(t, workspace, "s1", "ignored")
	time.Sleep(150 * time.Millisecond)

	if backend.count() != 0 {
		t.Errorf("saves = %d while disabled, want 0", backend.count())
	}

	// Re-enabling at runtime resumes write-back on the next change.
	enabled := cfg.Sync
	enabled.Enabled = true
	if err := d.UpdateSyncConfig(enabled); err != nil {
		t.Fatalf("UpdateSyncConfig() failed: %v", err)
	}
	writeSnippet(t, workspace, "s2", "synced")
	waitFor(t, "sync after enable", func() bool { return backend.count() == 1 })

	if err := d.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	<-done
}

func TestDaemon_StopWithoutStart(t *testing.T) {
	d, err := New(&recordingBackend{}, testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
	if err := d.Stop(); err != nil {
		t.Errorf("second Stop() failed: %v", err)
	}
}

func TestSyncOnce(t *testing.T) {
	workspace := t.TempDir()
	writeSnippet(t, workspace, "s1", "hello")

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "snippets.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() failed: %v", err)
	}
	defer store.Close()

	cfg := testConfig(workspace).Sync
	cfg.Enabled = false // SyncOnce runs regardless

	if err := SyncOnce(context.Background(), store, workspace, cfg, log.New(io.Discard, "", 0)); err != nil {
		t.Fatalf("SyncOnce() failed: %v", err)
	}

	sn, err := store.GetSnippet(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSnippet() failed: %v", err)
	}
	if sn.Title != "hello" {
		t.Errorf("Title = %q, want %q", sn.Title, "hello")
	}
}

func TestSyncOnce_Retries(t *testing.T) {
	tests := []struct {
		name    string
		failN   int
		retries int
		wantErr bool
	}{
		{name: "recovers", failN: 2, retries: 3},
		{name: "exhausted", failN: 5, retries: 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &recordingBackend{failN: tt.failN}
			cfg := testConfig(t.TempDir()).Sync
			cfg.MaxRetries = tt.retries

			err := SyncOnce(context.Background(), backend, t.TempDir(), cfg, log.New(io.Discard, "", 0))
			if (err != nil) != tt.wantErr {
				t.Fatalf("SyncOnce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var ferr *writeback.FlushError
				if !errors.As(err, &ferr) {
					t.Errorf("error %v is not a *FlushError", err)
				} else if ferr.Attempts != tt.retries+1 {
					t.Errorf("Attempts = %d, want %d", ferr.Attempts, tt.retries+1)
				}
			}
		})
	}
}
