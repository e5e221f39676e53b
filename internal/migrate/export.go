// Package migrate builds a workspace from snippets already held in a store.
//
// It is the reverse of write-back: a database created by an earlier version
// of the snippet backend (or a running remote backend) is exported to
// snippets/*.json and namespaces/*.json so the daemon can take over.
package migrate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codesnip/snipsync/internal/snippets"
)

// Source lists the contents of a store. *sqlite.Store and *remote.Client
// implement it.
type Source interface {
	ListSnippets(ctx context.Context) ([]snippets.Snippet, error)
	ListNamespaces(ctx context.Context) ([]snippets.Namespace, error)
}

// ExportOptions contains configuration for the export
type ExportOptions struct {
	Workspace string // Output workspace directory
	DryRun    bool   // Preview without writing
	Backup    bool   // Move existing workspace directories aside first
}

// ExportResult contains statistics about the export
type ExportResult struct {
	SnippetsExported   int
	NamespacesExported int
	FilesWritten       int
	BackupsCreated     []string
	Errors             []string
}

// Export writes every namespace and snippet in src to the workspace.
//
// The state is normalized first, the same way the daemon reads a workspace:
// snippets with no namespace are written into the default one.
//
// Entities that fail validation are reported in ExportResult.Errors and
// skipped; the export carries on with the rest.
func Export(ctx context.Context, src Source, opts ExportOptions) (*ExportResult, error) {
	if opts.Workspace == "" {
		return nil, fmt.Errorf("workspace cannot be empty")
	}

	namespaces, err := src.ListNamespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}
	list, err := src.ListSnippets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}

	state := &snippets.State{Namespaces: namespaces, Snippets: list}
	state.Normalize()

	result := &ExportResult{}
	snippetsDir := filepath.Join(opts.Workspace, snippets.SnippetsDir)
	namespacesDir := filepath.Join(opts.Workspace, snippets.NamespacesDir)

	if !opts.DryRun {
		if opts.Backup {
			stamp := time.Now().Format("20060102-150405")
			for _, dir := range []string{snippetsDir, namespacesDir} {
				backup, err := backupDir(dir, stamp)
				if err != nil {
					return result, err
				}
				if backup != "" {
					result.BackupsCreated = append(result.BackupsCreated, backup)
				}
			}
		}
		for _, dir := range []string{snippetsDir, namespacesDir} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return result, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
	}

	for i := range state.Namespaces {
		ns := &state.Namespaces[i]
		if err := ns.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("skipping namespace %q: %v", ns.ID, err))
			continue
		}
		if !opts.DryRun {
			if err := snippets.WriteNamespaceFile(namespacesDir, ns); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to write namespace %s: %v", ns.ID, err))
				continue
			}
			result.FilesWritten++
		}
		result.NamespacesExported++
	}

	for i := range state.Snippets {
		sn := &state.Snippets[i]
		if err := sn.Validate(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("skipping snippet %q: %v", sn.ID, err))
			continue
		}
		if !opts.DryRun {
			if err := snippets.WriteSnippetFile(snippetsDir, sn); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("failed to write snippet %s: %v", sn.ID, err))
				continue
			}
			result.FilesWritten++
		}
		result.SnippetsExported++
	}

	return result, nil
}

// backupDir renames dir to dir.backup.<stamp>. A missing dir is not an error
// and returns "".
func backupDir(dir, stamp string) (string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("failed to check %s: %w", dir, err)
	}

	backup := dir + ".backup." + stamp
	if err := os.Rename(dir, backup); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", dir, err)
	}
	return backup, nil
}

// Cleanup removes the workspace directories written by Export (for rollback).
func Cleanup(workspace string) error {
	for _, name := range []string{snippets.SnippetsDir, snippets.NamespacesDir} {
		dir := filepath.Join(workspace, name)
		if _, err := os.Stat(dir); err == nil {
			if err := os.RemoveAll(dir); err != nil {
				return fmt.Errorf("failed to remove %s: %w", dir, err)
			}
		}
	}
	return nil
}
