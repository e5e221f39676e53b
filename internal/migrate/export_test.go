package migrate

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codesnip/snipsync/internal/snippets"
	"github.com/codesnip/snipsync/internal/storage/sqlite"
)

type fakeSource struct {
	namespaces []snippets.Namespace
	snippets   []snippets.Snippet
	err        error
}

func (f *fakeSource) ListSnippets(ctx context.Context) ([]snippets.Snippet, error) {
	return f.snippets, f.err
}

func (f *fakeSource) ListNamespaces(ctx context.Context) ([]snippets.Namespace, error) {
	return f.namespaces, f.err
}

func TestExport_FromStore(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "snippets.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	if err := store.CreateNamespace(ctx, &snippets.Namespace{ID: "work", Name: "Work"}); err != nil {
		t.Fatalf("CreateNamespace failed: %v", err)
	}
	for _, sn := range []*snippets.Snippet{
		{ID: "s1", Title: "one", Code: "1", Language: "go", NamespaceID: "work"},
		{ID: "s2", Title: "two", Code: "2", Language: "go"},
	} {
		if err := store.CreateSnippet(ctx, sn); err != nil {
			t.Fatalf("CreateSnippet failed: %v", err)
		}
	}

	workspace := t.TempDir()
	result, err := Export(ctx, store, ExportOptions{Workspace: workspace})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.SnippetsExported != 2 || result.NamespacesExported != 2 || result.FilesWritten != 4 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}

	// The exported workspace reads back as the store's state.
	state, err := snippets.ReadState(workspace)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	want, err := store.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	// Snippets stored without a namespace belong to the default one.
	want.Normalize()
	if len(state.Snippets) != len(want.Snippets) || len(state.Namespaces) != len(want.Namespaces) {
		t.Fatalf("workspace has %d/%d, store has %d/%d",
			len(state.Snippets), len(state.Namespaces), len(want.Snippets), len(want.Namespaces))
	}
	exported := map[string]string{}
	for _, sn := range state.Snippets {
		exported[sn.ID] = sn.NamespaceID
	}
	for _, sn := range want.Snippets {
		if exported[sn.ID] != sn.NamespaceID {
			t.Errorf("snippet %s namespace = %q, want %q", sn.ID, exported[sn.ID], sn.NamespaceID)
		}
	}
	if exported["s2"] != snippets.DefaultNamespaceID {
		t.Errorf("snippet s2 namespace = %q, want %q", exported["s2"], snippets.DefaultNamespaceID)
	}

	// The file on disk carries the namespace, not just the read-back.
	raw, err := snippets.ReadSnippetFile(filepath.Join(workspace, snippets.SnippetsDir, "s2.json"))
	if err != nil {
		t.Fatalf("ReadSnippetFile failed: %v", err)
	}
	if raw.NamespaceID != snippets.DefaultNamespaceID {
		t.Errorf("s2.json namespaceId = %q, want %q", raw.NamespaceID, snippets.DefaultNamespaceID)
	}
}

func TestExport_DryRun(t *testing.T) {
	workspace := t.TempDir()
	src := &fakeSource{snippets: []snippets.Snippet{{ID: "s1", Title: "t", Language: "go"}}}

	result, err := Export(context.Background(), src, ExportOptions{Workspace: workspace, DryRun: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.SnippetsExported != 1 || result.NamespacesExported != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.FilesWritten != 0 {
		t.Errorf("dry run wrote %d files", result.FilesWritten)
	}
	if _, err := os.Stat(filepath.Join(workspace, snippets.SnippetsDir)); !os.IsNotExist(err) {
		t.Error("dry run should not create the snippets directory")
	}
}

func TestExport_SkipsInvalid(t *testing.T) {
	workspace := t.TempDir()
	src := &fakeSource{snippets: []snippets.Snippet{
		{ID: "good", Title: "t", Language: "go"},
		{ID: "bad", Language: "go"},
	}}

	result, err := Export(context.Background(), src, ExportOptions{Workspace: workspace})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if result.SnippetsExported != 1 {
		t.Errorf("expected 1 snippet exported, got %d", result.SnippetsExported)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], `"bad"`) {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
	if _, err := os.Stat(filepath.Join(workspace, snippets.SnippetsDir, "good.json")); err != nil {
		t.Errorf("good.json not written: %v", err)
	}
}

func TestExport_Backup(t *testing.T) {
	workspace := t.TempDir()
	old := filepath.Join(workspace, snippets.SnippetsDir)
	if err := os.MkdirAll(old, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(old, "stale.json"), []byte(`{"title":"stale","language":"go"}`), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := Export(context.Background(), &fakeSource{}, ExportOptions{Workspace: workspace, Backup: true})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if len(result.BackupsCreated) != 1 {
		t.Fatalf("expected 1 backup, got %v", result.BackupsCreated)
	}
	if _, err := os.Stat(filepath.Join(result.BackupsCreated[0], "stale.json")); err != nil {
		t.Errorf("backup missing stale.json: %v", err)
	}

	state, err := snippets.ReadState(workspace)
	if err != nil {
		t.Fatalf("ReadState failed: %v", err)
	}
	if len(state.Snippets) != 0 {
		t.Errorf("expected stale snippet to be moved aside, got %d snippets", len(state.Snippets))
	}
}

func TestExport_Errors(t *testing.T) {
	if _, err := Export(context.Background(), &fakeSource{}, ExportOptions{}); err == nil {
		t.Error("expected error for empty workspace")
	}

	src := &fakeSource{err: errors.New("connection refused")}
	if _, err := Export(context.Background(), src, ExportOptions{Workspace: t.TempDir()}); err == nil {
		t.Error("expected error when the source fails")
	}
}

func TestCleanup(t *testing.T) {
	workspace := t.TempDir()
	if _, err := Export(context.Background(), &fakeSource{}, ExportOptions{Workspace: workspace}); err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if err := Cleanup(workspace); err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	for _, name := range []string{snippets.SnippetsDir, snippets.NamespacesDir} {
		if _, err := os.Stat(filepath.Join(workspace, name)); !os.IsNotExist(err) {
			t.Errorf("%s still exists", name)
		}
	}

	// Cleaning an empty workspace is fine.
	if err := Cleanup(workspace); err != nil {
		t.Errorf("second Cleanup failed: %v", err)
	}
}
