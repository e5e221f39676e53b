package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/codesnip/snipsync/internal/snippets"
)

// ListNamespaces returns all namespaces, default first, then by name.
func (s *Store) ListNamespaces(ctx context.Context) ([]snippets.Namespace, error) {
	rows, err := s.conn.QueryContext(ctx, `
	SELECT id, name, createdAt, isDefault FROM namespaces
	ORDER BY isDefault DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer rows.Close()

	out := []snippets.Namespace{}
	for rows.Next() {
		var (
			ns        snippets.Namespace
			createdAt int64
			isDefault sql.NullInt64
		)
		if err := rows.Scan(&ns.ID, &ns.Name, &createdAt, &isDefault); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		ns.CreatedAt = snippets.Millis(createdAt)
		ns.IsDefault = isDefault.Int64 != 0
		out = append(out, ns)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating namespaces: %w", err)
	}
	return out, nil
}

// CreateNamespace inserts a new namespace.
func (s *Store) CreateNamespace(ctx context.Context, ns *snippets.Namespace) error {
	if ns.CreatedAt == 0 {
		ns.CreatedAt = snippets.Now()
	}
	if err := ns.Validate(); err != nil {
		return fmt.Errorf("invalid namespace: %w", err)
	}

	_, err := s.conn.ExecContext(ctx, `
	INSERT INTO namespaces (id, name, createdAt, isDefault) VALUES (?, ?, ?, ?)
	`, ns.ID, ns.Name, int64(ns.CreatedAt), boolToInt(ns.IsDefault))
	if err != nil {
		return fmt.Errorf("failed to create namespace %s: %w", ns.ID, err)
	}
	return nil
}

// DeleteNamespace removes namespace id and moves its snippets to the default
// namespace. It returns snippets.ErrNotFound for an unknown id and
// snippets.ErrDefaultNamespace for the default namespace.
func (s *Store) DeleteNamespace(ctx context.Context, id string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var isDefault sql.NullInt64
	err = tx.QueryRowContext(ctx, `SELECT isDefault FROM namespaces WHERE id = ?`, id).Scan(&isDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("namespace %s: %w", id, snippets.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up namespace %s: %w", id, err)
	}
	if isDefault.Int64 != 0 {
		return snippets.ErrDefaultNamespace
	}

	defaultID, err := defaultNamespaceID(ctx, tx)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE snippets SET namespaceId = ? WHERE namespaceId = ?`, defaultID, id); err != nil {
		return fmt.Errorf("failed to reassign snippets of namespace %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM namespaces WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete namespace %s: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func defaultNamespaceID(ctx context.Context, tx *sql.Tx) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM namespaces WHERE isDefault = 1 LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return snippets.DefaultNamespaceID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up default namespace: %w", err)
	}
	return id, nil
}

// upsertNamespace keeps the stored createdAt of an existing row. A new row
// with no timestamp is stamped now.
func upsertNamespace(ctx context.Context, ex execer, ns *snippets.Namespace) error {
	createdAt := ns.CreatedAt
	if createdAt == 0 {
		createdAt = snippets.Now()
	}
	_, err := ex.ExecContext(ctx, `
	INSERT INTO namespaces (id, name, createdAt, isDefault) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		name = excluded.name,
		isDefault = excluded.isDefault
	`, ns.ID, ns.Name, int64(createdAt), boolToInt(ns.IsDefault))
	if err != nil {
		return fmt.Errorf("failed to upsert namespace %s: %w", ns.ID, err)
	}
	return nil
}
