package daemon

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codesnip/snipsync/internal/snippets"
)

func makeDirs(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	snippetsDir := filepath.Join(root, snippets.SnippetsDir)
	namespacesDir := filepath.Join(root, snippets.NamespacesDir)
	for _, dir := range []string{snippetsDir, namespacesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	return snippetsDir, namespacesDir
}

func TestNewFileWatcher(t *testing.T) {
	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if fw.IsRunning() {
		t.Error("Newly created watcher should not be running")
	}

	// Stop without Start must not hang.
	if err := fw.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
	if err := fw.Stop(); err != nil {
		t.Errorf("Second Stop() failed: %v", err)
	}
}

func TestFileWatcher_StartStop(t *testing.T) {
	snippetsDir, namespacesDir := makeDirs(t)

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}

	if err := fw.Start(snippetsDir, namespacesDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if !fw.IsRunning() {
		t.Error("Watcher should be running after Start()")
	}
	if err := fw.Start(snippetsDir, namespacesDir); err == nil {
		t.Error("Second Start() should fail")
	}

	if err := fw.Stop(); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	if fw.IsRunning() {
		t.Error("Watcher should not be running after Stop()")
	}
	if _, ok := <-fw.Events(); ok {
		t.Error("Events channel should be closed after Stop()")
	}
	if err := fw.Start(snippetsDir, namespacesDir); err == nil {
		t.Error("Start() after Stop() should fail")
	}
}

func TestFileWatcher_MissingDirectory(t *testing.T) {
	snippetsDir, _ := makeDirs(t)

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(snippetsDir, filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Start() with a missing directory should fail")
	}
}

func TestFileWatcher_Events(t *testing.T) {
	snippetsDir, namespacesDir := makeDirs(t)

	fw, err := NewFileWatcher()
	if err != nil {
		t.Fatalf("NewFileWatcher() failed: %v", err)
	}
	defer fw.Stop()

	if err := fw.Start(snippetsDir, namespacesDir); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	path := filepath.Join(snippetsDir, "s1.json")
	if err := os.WriteFile(path, []byte(`{"title":"t"}`), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	ev := waitForEvent(t, fw, func(ev FileEvent) bool { return ev.Path == path })
	if ev.Type != TypeSnippet {
		t.Errorf("Type = %v, want snippet", ev.Type)
	}
	if ev.Op != OpCreate && ev.Op != OpModify {
		t.Errorf("Op = %v, want create or modify", ev.Op)
	}

	nsPath := filepath.Join(namespacesDir, "work.yaml")
	if err := os.WriteFile(nsPath, []byte("name: Work\n"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	ev = waitForEvent(t, fw, func(ev FileEvent) bool { return ev.Path == nsPath })
	if ev.Type != TypeNamespace {
		t.Errorf("Type = %v, want namespace", ev.Type)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}
	waitForEvent(t, fw, func(ev FileEvent) bool { return ev.Path == path && ev.Op == OpDelete })
}

func waitForEvent(t *testing.T, fw *FileWatcher, match func(FileEvent) bool) FileEvent {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-fw.Events():
			if match(ev) {
				return ev
			}
		case err := <-fw.Errors():
			t.Fatalf("Watcher error: %v", err)
		case <-timeout:
			t.Fatal("Timed out waiting for file event")
		}
	}
}

func TestConvertEvent(t *testing.T) {
	snippetsDir, namespacesDir := makeDirs(t)
	fw := &FileWatcher{snippetsDir: absDir(snippetsDir), namespacesDir: absDir(namespacesDir)}

	tests := []struct {
		name   string
		event  fsnotify.Event
		want   FileEvent
		wantOK bool
	}{
		{
			name:   "snippet create",
			event:  fsnotify.Event{Name: filepath.Join(snippetsDir, "a.json"), Op: fsnotify.Create},
			want:   FileEvent{Type: TypeSnippet, Op: OpCreate},
			wantOK: true,
		},
		{
			name:   "namespace write",
			event:  fsnotify.Event{Name: filepath.Join(namespacesDir, "n.yml"), Op: fsnotify.Write},
			want:   FileEvent{Type: TypeNamespace, Op: OpModify},
			wantOK: true,
		},
		{
			name:   "rename is delete",
			event:  fsnotify.Event{Name: filepath.Join(snippetsDir, "a.json"), Op: fsnotify.Rename},
			want:   FileEvent{Type: TypeSnippet, Op: OpDelete},
			wantOK: true,
		},
		{
			name:  "chmod ignored",
			event: fsnotify.Event{Name: filepath.Join(snippetsDir, "a.json"), Op: fsnotify.Chmod},
		},
		{
			name:  "temp file ignored",
			event: fsnotify.Event{Name: filepath.Join(snippetsDir, ".a.json.123.tmp"), Op: fsnotify.Create},
		},
		{
			name:  "hidden json ignored",
			event: fsnotify.Event{Name: filepath.Join(snippetsDir, ".a.json"), Op: fsnotify.Create},
		},
		{
			name:  "unsupported extension",
			event: fsnotify.Event{Name: filepath.Join(snippetsDir, "notes.txt"), Op: fsnotify.Create},
		},
		{
			name:  "other directory",
			event: fsnotify.Event{Name: filepath.Join(t.TempDir(), "a.json"), Op: fsnotify.Create},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := fw.convertEvent(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("convertEvent() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if got.Type != tt.want.Type || got.Op != tt.want.Op {
				t.Errorf("convertEvent() = %v %v, want %v %v", got.Type, got.Op, tt.want.Type, tt.want.Op)
			}
		})
	}
}

func TestFileEvent_Kind(t *testing.T) {
	tests := []struct {
		ev   FileEvent
		want string
	}{
		{FileEvent{Type: TypeSnippet, Op: OpCreate}, string(snippets.EventSnippetCreated)},
		{FileEvent{Type: TypeSnippet, Op: OpModify}, string(snippets.EventSnippetUpdated)},
		{FileEvent{Type: TypeSnippet, Op: OpDelete}, string(snippets.EventSnippetDeleted)},
		{FileEvent{Type: TypeNamespace, Op: OpCreate}, string(snippets.EventNamespaceCreated)},
		{FileEvent{Type: TypeNamespace, Op: OpModify}, string(snippets.EventNamespaceUpdated)},
		{FileEvent{Type: TypeNamespace, Op: OpDelete}, string(snippets.EventNamespaceDeleted)},
	}

	for _, tt := range tests {
		if got := string(tt.ev.Kind()); got != tt.want {
			t.Errorf("%v %v: Kind() = %q, want %q", tt.ev.Type, tt.ev.Op, got, tt.want)
		}
	}
}
