package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/codesnip/snipsync/internal/snippets"
)

// SaveState replaces the stored contents with state in one transaction.
//
// Rows absent from state are deleted. The default namespace of state (which
// Normalize guarantees) becomes the only default; it is never deleted.
// state itself is not modified.
func (s *Store) SaveState(ctx context.Context, state *snippets.State) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	st := state.Clone()
	st.Normalize()

	for i := range st.Namespaces {
		if err := st.Namespaces[i].Validate(); err != nil {
			return fmt.Errorf("invalid namespace %q: %w", st.Namespaces[i].ID, err)
		}
	}
	for i := range st.Snippets {
		if err := st.Snippets[i].Validate(); err != nil {
			return fmt.Errorf("invalid snippet %q: %w", st.Snippets[i].ID, err)
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	keepSnippets := make(map[string]bool, len(st.Snippets))
	for _, sn := range st.Snippets {
		keepSnippets[sn.ID] = true
	}
	keepNamespaces := make(map[string]bool, len(st.Namespaces))
	for _, ns := range st.Namespaces {
		keepNamespaces[ns.ID] = true
	}

	staleSnippets, err := queryIDs(ctx, tx, `SELECT id FROM snippets`, keepSnippets)
	if err != nil {
		return err
	}
	for _, id := range staleSnippets {
		if _, err := tx.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete snippet %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE namespaces SET isDefault = 0 WHERE id != ?`, st.DefaultID()); err != nil {
		return fmt.Errorf("failed to clear default namespace: %w", err)
	}
	for i := range st.Namespaces {
		if err := upsertNamespace(ctx, tx, &st.Namespaces[i]); err != nil {
			return err
		}
	}
	for i := range st.Snippets {
		if err := upsertSnippet(ctx, tx, &st.Snippets[i]); err != nil {
			return err
		}
	}

	staleNamespaces, err := queryIDs(ctx, tx, `SELECT id FROM namespaces WHERE isDefault = 0`, keepNamespaces)
	if err != nil {
		return err
	}
	for _, id := range staleNamespaces {
		if _, err := tx.ExecContext(ctx, `DELETE FROM namespaces WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete namespace %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadState reads the full stored state.
func (s *Store) LoadState(ctx context.Context) (*snippets.State, error) {
	namespaces, err := s.ListNamespaces(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.ListSnippets(ctx)
	if err != nil {
		return nil, err
	}
	return &snippets.State{Namespaces: namespaces, Snippets: list}, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryIDs runs query (which selects a single id column) and returns the
// ids not in keep.
func queryIDs(ctx context.Context, q querier, query string, keep map[string]bool) ([]string, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ids: %w", err)
	}
	return stale, nil
}
