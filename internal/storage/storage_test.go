package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage/remote"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "default", cfg: DefaultConfig()},
		{name: "local without path", cfg: Config{Backend: BackendLocal}, wantErr: "database_path is required"},
		{name: "remote without url", cfg: Config{Backend: BackendRemote}, wantErr: "remote_url is required"},
		{name: "unknown backend", cfg: Config{Backend: "s3"}, wantErr: "unknown backend"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestOpen_SelectsBackend(t *testing.T) {
	local, err := Open(Config{Backend: BackendLocal, DatabasePath: filepath.Join(t.TempDir(), "s.db")})
	if err != nil {
		t.Fatalf("Open(local) failed: %v", err)
	}
	defer local.Close()
	if _, ok := local.(*sqlite.Store); !ok {
		t.Errorf("Open(local) = %T, want *sqlite.Store", local)
	}

	rem, err := Open(Config{Backend: BackendRemote, RemoteURL: "http://localhost:5000"})
	if err != nil {
		t.Fatalf("Open(remote) failed: %v", err)
	}
	defer rem.Close()
	if _, ok := rem.(*remote.Client); !ok {
		t.Errorf("Open(remote) = %T, want *remote.Client", rem)
	}
}

func TestAdapter(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "s.db"))
	if err != nil {
		t.Fatalf("sqlite.Open() failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	save := Adapter(store)

	state := &snippets.State{Snippets: []snippets.Snippet{{ID: "a", Title: "A", Code: "x", Language: "go"}}}
	if err := save.Save(ctx, state); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := store.GetSnippet(ctx, "a"); err != nil {
		t.Errorf("snippet not persisted: %v", err)
	}

	if err := save.Save(ctx, "not a state"); err == nil || !strings.Contains(err.Error(), "unexpected snapshot type") {
		t.Errorf("Save(string) error = %v", err)
	}
}
