// Package sqlite provides the embedded SQLite store for snippets.
//
// The database is a single file opened through the pure-Go
// ncruces/go-sqlite3 driver with WAL enabled, so the REST backend can serve
// reads while the write-back daemon replaces the stored state.
//
// Schema:
//   - namespaces(id, name, createdAt, isDefault)
//   - snippets(id, title, description, code, language, category,
//     namespaceId → namespaces.id, hasPreview, functionName,
//     inputParameters JSON, createdAt, updatedAt)
//
// Timestamps are Unix milliseconds. There is always exactly one default
// namespace; InitSchema seeds it when missing.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/codesnip/snipsync/internal/snippets"
)

// Store wraps the SQLite connection pool.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and initializes the
// schema.
//
// The caller MUST call Close() when done so the WAL is checkpointed.
//
// Example:
//
//	store, err := sqlite.Open("data/snippets.db")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them.
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_txlock=immediate", path)
	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{
		conn: conn,
		path: path,
	}

	if err := s.InitSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RawDB returns the underlying sql.DB connection.
func (s *Store) RawDB() *sql.DB {
	return s.conn
}

// Close checkpoints the WAL and closes the connection pool.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	s.conn = nil
	return nil
}

const createTables = `
CREATE TABLE IF NOT EXISTS namespaces (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	createdAt INTEGER NOT NULL,
	isDefault INTEGER DEFAULT 0
);

CREATE TABLE IF NOT EXISTS snippets (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT,
	code TEXT NOT NULL,
	language TEXT NOT NULL,
	category TEXT NOT NULL,
	namespaceId TEXT,
	hasPreview INTEGER DEFAULT 0,
	functionName TEXT,
	inputParameters TEXT,  -- JSON array
	createdAt INTEGER NOT NULL,
	updatedAt INTEGER NOT NULL,
	FOREIGN KEY (namespaceId) REFERENCES namespaces(id)
);

CREATE INDEX IF NOT EXISTS idx_snippets_updated ON snippets(updatedAt);
CREATE INDEX IF NOT EXISTS idx_snippets_namespace ON snippets(namespaceId);
`

// InitSchema creates the tables, migrates databases created before
// namespaces existed, and seeds the default namespace. Idempotent.
func (s *Store) InitSchema() error {
	return s.InitSchemaContext(context.Background())
}

// InitSchemaContext is InitSchema with context support.
func (s *Store) InitSchemaContext(ctx context.Context) error {
	return s.rebuild(ctx, false)
}

// rebuild runs schema setup in one transaction, dropping existing tables
// first when wipe is set or the schema predates namespaces.
func (s *Store) rebuild(ctx context.Context, wipe bool) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if !wipe {
		legacy, err := needsMigration(ctx, tx)
		if err != nil {
			return err
		}
		if legacy {
			// Pre-namespace databases are recreated, not converted.
			fmt.Fprintf(os.Stderr, "Schema migration needed - recreating tables with namespace support\n")
			wipe = true
		}
	}
	if wipe {
		if err := dropTables(ctx, tx); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, createTables); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := seedDefaultNamespace(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema: %w", err)
	}
	return nil
}

// needsMigration reports whether a snippets table exists without the
// namespaceId column, or exists without a namespaces table.
func needsMigration(ctx context.Context, tx *sql.Tx) (bool, error) {
	var tables int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='snippets'`).Scan(&tables)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if tables == 0 {
		return false, nil
	}

	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='namespaces'`).Scan(&tables)
	if err != nil {
		return false, fmt.Errorf("failed to inspect schema: %w", err)
	}
	if tables == 0 {
		return true, nil
	}

	var columns int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pragma_table_info('snippets') WHERE name = 'namespaceId'`).Scan(&columns)
	if err != nil {
		return false, fmt.Errorf("failed to inspect snippets table: %w", err)
	}
	return columns == 0, nil
}

func dropTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"snippets", "namespaces"} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	return nil
}

func seedDefaultNamespace(ctx context.Context, tx *sql.Tx) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM namespaces WHERE isDefault = 1`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count default namespaces: %w", err)
	}
	if count > 0 {
		return nil
	}

	ns := snippets.DefaultNamespace()
	_, err := tx.ExecContext(ctx, `
	INSERT INTO namespaces (id, name, createdAt, isDefault) VALUES (?, ?, ?, 1)
	ON CONFLICT(id) DO UPDATE SET isDefault = 1
	`, ns.ID, ns.Name, int64(ns.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to seed default namespace: %w", err)
	}
	return nil
}

// Wipe drops all tables and recreates an empty schema with only the
// default namespace.
func (s *Store) Wipe(ctx context.Context) error {
	return s.rebuild(ctx, true)
}

// Stats summarizes the store contents.
type Stats struct {
	Path       string          `json:"path"`
	Snippets   int             `json:"snippets"`
	Namespaces int             `json:"namespaces"`
	LastUpdate snippets.Millis `json:"lastUpdate"`
}

// Stats counts rows and finds the most recent snippet update.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Path: s.path}

	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM snippets`).Scan(&st.Snippets); err != nil {
		return st, fmt.Errorf("failed to count snippets: %w", err)
	}
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM namespaces`).Scan(&st.Namespaces); err != nil {
		return st, fmt.Errorf("failed to count namespaces: %w", err)
	}

	var last sql.NullInt64
	if err := s.conn.QueryRowContext(ctx, `SELECT MAX(updatedAt) FROM snippets`).Scan(&last); err != nil {
		return st, fmt.Errorf("failed to read last update: %w", err)
	}
	st.LastUpdate = snippets.Millis(last.Int64)

	return st, nil
}
