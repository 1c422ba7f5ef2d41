package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// MaxSearchResults caps the number of rows SearchNodes and Relationships return.
const MaxSearchResults = 100

var (
	// ErrNoLocation is returned when the store is opened without a database path.
	ErrNoLocation = errors.New("store: database location is not configured")
)

// Store is the SQLite data access layer for the nodes and edges tables.
// It holds a single connection: callers must serialize mutating flows.
type Store struct {
	db            *sql.DB
	path          string
	caseSensitive bool
}

// Option configures a Store.
type Option func(*Store)

// WithCaseSensitiveSearch makes SearchNodes match name substrings exactly
// instead of ignoring ASCII case.
func WithCaseSensitiveSearch(enabled bool) Option {
	return func(s *Store) {
		s.caseSensitive = enabled
	}
}

// Open opens a SQLite database at dbPath with WAL mode and foreign keys
// enabled. The schema is not created; call Migrate.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, ErrNoLocation
	}
	db, err := sql.Open(DriverName, dataSourceName(dbPath))
	if err != nil {
		return nil, fmt.Errorf("store: open database %s: %w", dbPath, err)
	}
	// One connection keeps PRAGMA state and gives a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database %s: %w", dbPath, err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: enable foreign keys: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database location the Store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Migrate creates the tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS nodes (
  id              TEXT PRIMARY KEY,
  file_path       TEXT NOT NULL,
  name            TEXT NOT NULL,
  kind            TEXT NOT NULL CHECK (kind IN ('function', 'class', 'variable', 'interface', 'method', 'type_alias', 'enum')),
  start_line      INTEGER NOT NULL,
  end_line        INTEGER NOT NULL,
  signature       TEXT NOT NULL DEFAULT '',
  doc_comment     TEXT,
  exported        INTEGER NOT NULL DEFAULT 0,
  updated_at      INTEGER NOT NULL,
  CHECK (start_line <= end_line)
);

CREATE TABLE IF NOT EXISTS edges (
  id              TEXT PRIMARY KEY,
  source_node_id  TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  target_node_id  TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
  relation        TEXT NOT NULL CHECK (relation IN ('imports', 'calls', 'extends', 'implements'))
);

CREATE INDEX IF NOT EXISTS idx_nodes_file ON nodes(file_path);
CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(name);
CREATE INDEX IF NOT EXISTS idx_nodes_kind ON nodes(kind);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_node_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_node_id);
CREATE INDEX IF NOT EXISTS idx_edges_relation ON edges(relation);
`

// Clear drops every node and edge in one transaction.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{"DELETE FROM edges", "DELETE FROM nodes"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("store: clear: %w", err)
		}
	}
	return tx.Commit()
}

// DeleteByFile removes every node of filePath. Edges referencing those nodes
// as source or target go with them through ON DELETE CASCADE. Returns the
// number of deleted nodes.
func (s *Store) DeleteByFile(ctx context.Context, filePath string) (int64, error) {
	return s.deleteNodes(ctx, filePath, "DELETE FROM nodes WHERE file_path = ?", filePath)
}

// DeleteByDir removes every node whose file lives under dir (slash
// separated, relative like every stored path), cascading to their edges.
// Matching is case-sensitive: LIKE narrows the rows, the substr comparison
// rejects case-folded matches. An empty dir deletes nothing.
func (s *Store) DeleteByDir(ctx context.Context, dir string) (int64, error) {
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		return 0, nil
	}
	prefix := dir + "/"
	return s.deleteNodes(ctx, dir,
		`DELETE FROM nodes WHERE file_path LIKE ? ESCAPE '\' AND substr(file_path, 1, length(?)) = ?`,
		escapeLike(prefix)+"%", prefix, prefix)
}

func (s *Store) deleteNodes(ctx context.Context, label, query string, args ...any) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("store: delete nodes of %s: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("store: rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit delete of %s: %w", label, err)
	}
	return n, nil
}

// Counts returns the number of distinct files, nodes and edges.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(DISTINCT file_path) FROM nodes),
		   (SELECT COUNT(*) FROM nodes),
		   (SELECT COUNT(*) FROM edges)`,
	).Scan(&c.Files, &c.Nodes, &c.Edges)
	if err != nil {
		return Counts{}, fmt.Errorf("store: counts: %w", err)
	}
	return c, nil
}

// FilePaths returns every distinct file path that has at least one node, sorted.
func (s *Store) FilePaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT file_path FROM nodes ORDER BY file_path")
	if err != nil {
		return nil, fmt.Errorf("store: file paths: %w", err)
	}
	defer rows.Close()
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: scan file path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
