package snippets

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workspace directory names under the root.
const (
	SnippetsDir   = "snippets"
	NamespacesDir = "namespaces"
)

// IsEntityFile reports whether name has a supported extension.
func IsEntityFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// idFromPath returns the file name without its extension.
func idFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// decodeFile parses data as YAML or JSON depending on the extension of path.
func decodeFile(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

// ReadSnippetFile reads and validates one snippet file.
func ReadSnippetFile(path string) (*Snippet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read snippet file %s: %w", path, err)
	}

	var s Snippet
	if err := decodeFile(path, data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snippet file %s: %w", path, err)
	}
	if s.ID == "" {
		s.ID = idFromPath(path)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid snippet file %s: %w", path, err)
	}
	if s.CreatedAt == 0 {
		s.CreatedAt = modTime(path)
	}
	s.ApplyDefaults()

	return &s, nil
}

// ReadNamespaceFile reads and validates one namespace file.
func ReadNamespaceFile(path string) (*Namespace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read namespace file %s: %w", path, err)
	}

	var n Namespace
	if err := decodeFile(path, data, &n); err != nil {
		return nil, fmt.Errorf("failed to parse namespace file %s: %w", path, err)
	}
	if n.ID == "" {
		n.ID = idFromPath(path)
	}
	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("invalid namespace file %s: %w", path, err)
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = modTime(path)
	}

	return &n, nil
}

// WriteSnippetFile writes s to dir/{id}.json as pretty-printed JSON.
func WriteSnippetFile(dir string, s *Snippet) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid snippet: %w", err)
	}
	return writeJSON(dir, s.Filename(), s)
}

// WriteNamespaceFile writes n to dir/{id}.json as pretty-printed JSON.
func WriteNamespaceFile(dir string, n *Namespace) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("cannot write invalid namespace: %w", err)
	}
	return writeJSON(dir, n.Filename(), n)
}

// modTime returns the file's modification time, so a missing createdAt is
// the same on every read. Zero if the file cannot be stat'ed.
func modTime(path string) Millis {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return FromTime(info.ModTime())
}

func writeJSON(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	// Write through a temp file so watchers never see a half-written entity.
	path := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadState loads the full workspace under root, warning on stderr about
// files it skips.
func ReadState(root string) (*State, error) {
	return LoadState(root, nil)
}

// LoadState is ReadState with warnings sent to logger. A nil logger writes
// to stderr.
//
// The returned state is normalized, so it always contains the default
// namespace. Missing directories are treated as empty.
func LoadState(root string, logger *log.Logger) (*State, error) {
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}

	state := &State{}

	err := readDir(filepath.Join(root, NamespacesDir), logger, func(path string) error {
		n, err := ReadNamespaceFile(path)
		if err != nil {
			return err
		}
		state.Namespaces = append(state.Namespaces, *n)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = readDir(filepath.Join(root, SnippetsDir), logger, func(path string) error {
		s, err := ReadSnippetFile(path)
		if err != nil {
			return err
		}
		state.Snippets = append(state.Snippets, *s)
		return nil
	})
	if err != nil {
		return nil, err
	}

	state.Normalize()
	return state, nil
}

// readDir calls load for every entity file in dir. Per-file errors are
// logged and skipped; only failing to list dir is returned.
func readDir(dir string, logger *log.Logger, load func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !IsEntityFile(name) {
			continue
		}
		if err := load(filepath.Join(dir, name)); err != nil {
			logger.Printf("Warning: skipping %s: %v", name, err)
		}
	}
	return nil
}
