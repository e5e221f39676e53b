package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/codesnip/snipsync/internal/snippets"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const snippetColumns = `id, title, description, code, language, category, namespaceId,
	hasPreview, functionName, inputParameters, createdAt, updatedAt`

// ListSnippets returns all snippets, most recently updated first.
func (s *Store) ListSnippets(ctx context.Context) ([]snippets.Snippet, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+snippetColumns+` FROM snippets ORDER BY updatedAt DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snippets: %w", err)
	}
	defer rows.Close()

	return scanSnippets(rows)
}

// GetSnippet returns one snippet or snippets.ErrNotFound.
func (s *Store) GetSnippet(ctx context.Context, id string) (*snippets.Snippet, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+snippetColumns+` FROM snippets WHERE id = ?`, id)
	sn, err := scanSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("snippet %s: %w", id, snippets.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return sn, nil
}

// CreateSnippet inserts a new snippet. Optional fields get their defaults.
func (s *Store) CreateSnippet(ctx context.Context, sn *snippets.Snippet) error {
	sn.ApplyDefaults()
	if err := sn.Validate(); err != nil {
		return fmt.Errorf("invalid snippet: %w", err)
	}

	params, err := paramsToNullString(sn.InputParameters)
	if err != nil {
		return err
	}

	_, err = s.conn.ExecContext(ctx, `
	INSERT INTO snippets (`+snippetColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sn.ID, sn.Title, sn.Description, sn.Code, sn.Language, sn.Category,
		stringToNull(sn.NamespaceID), boolToInt(sn.HasPreview), stringToNull(sn.FunctionName),
		params, int64(sn.CreatedAt), int64(sn.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create snippet %s: %w", sn.ID, err)
	}
	return nil
}

// UpdateSnippet overwrites the editable fields of snippet id. createdAt is
// never changed. Returns snippets.ErrNotFound when no row matched.
func (s *Store) UpdateSnippet(ctx context.Context, id string, sn *snippets.Snippet) error {
	sn.ID = id
	if sn.Category == "" {
		sn.Category = snippets.DefaultCategory
	}
	if sn.UpdatedAt == 0 {
		sn.UpdatedAt = snippets.Now()
	}
	if err := sn.Validate(); err != nil {
		return fmt.Errorf("invalid snippet: %w", err)
	}

	params, err := paramsToNullString(sn.InputParameters)
	if err != nil {
		return err
	}

	res, err := s.conn.ExecContext(ctx, `
	UPDATE snippets
	SET title = ?, description = ?, code = ?, language = ?, category = ?, namespaceId = ?,
		hasPreview = ?, functionName = ?, inputParameters = ?, updatedAt = ?
	WHERE id = ?
	`,
		sn.Title, sn.Description, sn.Code, sn.Language, sn.Category, stringToNull(sn.NamespaceID),
		boolToInt(sn.HasPreview), stringToNull(sn.FunctionName), params, int64(sn.UpdatedAt),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to update snippet %s: %w", id, err)
	}
	return requireRow(res, "snippet", id)
}

// DeleteSnippet removes snippet id. Returns snippets.ErrNotFound when no row
// matched.
func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete snippet %s: %w", id, err)
	}
	return requireRow(res, "snippet", id)
}

// upsertSnippet inserts or replaces sn inside a SaveState transaction.
func upsertSnippet(ctx context.Context, ex execer, sn *snippets.Snippet) error {
	params, err := paramsToNullString(sn.InputParameters)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx, `
	INSERT INTO snippets (`+snippetColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		code = excluded.code,
		language = excluded.language,
		category = excluded.category,
		namespaceId = excluded.namespaceId,
		hasPreview = excluded.hasPreview,
		functionName = excluded.functionName,
		inputParameters = excluded.inputParameters,
		createdAt = excluded.createdAt,
		updatedAt = excluded.updatedAt
	`,
		sn.ID, sn.Title, sn.Description, sn.Code, sn.Language, sn.Category,
		stringToNull(sn.NamespaceID), boolToInt(sn.HasPreview), stringToNull(sn.FunctionName),
		params, int64(sn.CreatedAt), int64(sn.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snippet %s: %w", sn.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (*snippets.Snippet, error) {
	var (
		sn           snippets.Snippet
		description  sql.NullString
		namespaceID  sql.NullString
		hasPreview   sql.NullInt64
		functionName sql.NullString
		params       sql.NullString
		createdAt    int64
		updatedAt    int64
	)

	err := row.Scan(
		&sn.ID, &sn.Title, &description, &sn.Code, &sn.Language, &sn.Category,
		&namespaceID, &hasPreview, &functionName, &params, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan snippet: %w", err)
	}

	sn.Description = description.String
	sn.NamespaceID = namespaceID.String
	sn.HasPreview = hasPreview.Int64 != 0
	sn.FunctionName = functionName.String
	sn.CreatedAt = snippets.Millis(createdAt)
	sn.UpdatedAt = snippets.Millis(updatedAt)

	if params.Valid && params.String != "" {
		if err := json.Unmarshal([]byte(params.String), &sn.InputParameters); err != nil {
			return nil, fmt.Errorf("failed to parse inputParameters of snippet %s: %w", sn.ID, err)
		}
	}

	return &sn, nil
}

func scanSnippets(rows *sql.Rows) ([]snippets.Snippet, error) {
	out := []snippets.Snippet{}
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snippets: %w", err)
	}
	return out, nil
}

// paramsToNullString stores an empty parameter list as NULL.
func paramsToNullString(params []snippets.InputParameter) (sql.NullString, error) {
	if len(params) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal inputParameters: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func stringToNull(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, snippets.ErrNotFound)
	}
	return nil
}
