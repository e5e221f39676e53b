package daemon

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/writeback"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// EntityType says which workspace directory an event came from.
type EntityType int

const (
	// TypeSnippet indicates a file under snippets/.
	TypeSnippet EntityType = iota
	// TypeNamespace indicates a file under namespaces/.
	TypeNamespace
)

// String returns a human-readable representation of the entity type.
func (et EntityType) String() string {
	switch et {
	case TypeSnippet:
		return "snippet"
	case TypeNamespace:
		return "namespace"
	default:
		return "unknown"
	}
}

// FileEvent represents a change to a snippet or namespace file.
type FileEvent struct {
	// Path is the file that changed.
	Path string
	// Type is the entity the file holds.
	Type EntityType
	// Op is the operation that occurred.
	Op EventOp
}

// Kind maps the event to the application event kind it represents.
func (e FileEvent) Kind() writeback.EventKind {
	switch {
	case e.Type == TypeSnippet && e.Op == OpCreate:
		return snippets.EventSnippetCreated
	case e.Type == TypeSnippet && e.Op == OpModify:
		return snippets.EventSnippetUpdated
	case e.Type == TypeSnippet:
		return snippets.EventSnippetDeleted
	case e.Op == OpCreate:
		return snippets.EventNamespaceCreated
	case e.Op == OpModify:
		return snippets.EventNamespaceUpdated
	default:
		return snippets.EventNamespaceDeleted
	}
}

// FileWatcher watches the snippets and namespaces directories.
type FileWatcher struct {
	watcher       *fsnotify.Watcher
	events        chan FileEvent
	errors        chan error
	done          chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
	stopped       bool
	snippetsDir   string
	namespacesDir string
}

// NewFileWatcher creates a FileWatcher. It emits nothing until Start.
func NewFileWatcher() (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &FileWatcher{
		watcher: watcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching both directories, which must exist.
func (fw *FileWatcher) Start(snippetsDir, namespacesDir string) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.stopped {
		return fmt.Errorf("watcher already stopped")
	}
	if fw.running {
		return fmt.Errorf("watcher already running")
	}

	fw.snippetsDir = absDir(snippetsDir)
	fw.namespacesDir = absDir(namespacesDir)

	if err := fw.watcher.Add(snippetsDir); err != nil {
		return fmt.Errorf("failed to watch snippets directory %s: %w", snippetsDir, err)
	}
	if err := fw.watcher.Add(namespacesDir); err != nil {
		_ = fw.watcher.Remove(snippetsDir)
		return fmt.Errorf("failed to watch namespaces directory %s: %w", namespacesDir, err)
	}

	fw.running = true
	fw.wg.Add(1)
	go fw.processEvents()

	return nil
}

// Stop stops watching and closes the Events and Errors channels. It blocks
// until the event loop has exited. Safe to call more than once, and on a
// watcher that was never started.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if fw.stopped {
		fw.mu.Unlock()
		return nil
	}
	fw.stopped = true
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()

	close(fw.done)
	err := fw.watcher.Close()

	if wasRunning {
		fw.wg.Wait()
	}
	close(fw.events)
	close(fw.errors)

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Events returns the channel of file events. Closed by Stop.
func (fw *FileWatcher) Events() <-chan FileEvent {
	return fw.events
}

// Errors returns the channel of watcher errors. Closed by Stop.
func (fw *FileWatcher) Errors() <-chan error {
	return fw.errors
}

// IsRunning returns true if the watcher is currently running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fileEvent, ok := fw.convertEvent(event); ok {
				select {
				case fw.events <- fileEvent:
				case <-fw.done:
					return
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}
		}
	}
}

// convertEvent maps an fsnotify event to a FileEvent. Hidden files (editor
// swap files, our own temp files) and unsupported extensions are ignored.
func (fw *FileWatcher) convertEvent(event fsnotify.Event) (FileEvent, bool) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !snippets.IsEntityFile(name) {
		return FileEvent{}, false
	}

	var typ EntityType
	switch filepath.Dir(absDir(event.Name)) {
	case fw.snippetsDir:
		typ = TypeSnippet
	case fw.namespacesDir:
		typ = TypeNamespace
	default:
		return FileEvent{}, false
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// A rename's new name arrives as its own Create.
		op = OpDelete
	default:
		return FileEvent{}, false
	}

	return FileEvent{Path: event.Name, Type: typ, Op: op}, true
}

func absDir(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return abs
}
