package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// nodeCols is the column list for node queries.
const nodeCols = `id, file_path, name, kind, start_line, end_line, signature, doc_comment, exported, updated_at`

// InsertNodes inserts nodes in a single transaction: either every node is
// written or none is. Nodes without an ID get a fresh UUID, and UpdatedAt is
// set to the write time. IDs are assigned on the passed structs.
func (s *Store) InsertNodes(ctx context.Context, nodes []*Node) error {
	if len(nodes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO nodes (`+nodeCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare node insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, n := range nodes {
		if !n.Kind.Valid() {
			return fmt.Errorf("store: insert node %q: invalid kind %q", n.Name, n.Kind)
		}
		if n.StartLine > n.EndLine {
			return fmt.Errorf("store: insert node %q: start line %d after end line %d", n.Name, n.StartLine, n.EndLine)
		}
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		n.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx,
			n.ID, n.FilePath, n.Name, string(n.Kind), n.StartLine, n.EndLine,
			n.Signature, nullString(n.DocComment), n.Exported, now.UnixMilli(),
		); err != nil {
			return fmt.Errorf("store: insert node %q: %w", n.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit nodes: %w", err)
	}
	return nil
}

func scanNode(scanner interface{ Scan(...any) error }) (*Node, error) {
	n := &Node{}
	var (
		kind      string
		doc       sql.NullString
		updatedAt int64
	)
	err := scanner.Scan(
		&n.ID, &n.FilePath, &n.Name, &kind, &n.StartLine, &n.EndLine,
		&n.Signature, &doc, &n.Exported, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.Kind = Kind(kind)
	if doc.Valid {
		n.DocComment = &doc.String
	}
	n.UpdatedAt = time.UnixMilli(updatedAt)
	return n, nil
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...any) ([]*Node, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// queryNode returns the first row of query, or nil when there is none.
func (s *Store) queryNode(ctx context.Context, query string, args ...any) (*Node, error) {
	n, err := scanNode(s.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// NodeByID returns the node with the given id, or nil if it doesn't exist.
func (s *Store) NodeByID(ctx context.Context, id string) (*Node, error) {
	n, err := s.queryNode(ctx, "SELECT "+nodeCols+" FROM nodes WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("store: node by id: %w", err)
	}
	return n, nil
}

// NodesByFile returns the nodes of filePath in source order.
func (s *Store) NodesByFile(ctx context.Context, filePath string) ([]*Node, error) {
	nodes, err := s.queryNodes(ctx,
		"SELECT "+nodeCols+" FROM nodes WHERE file_path = ? ORDER BY start_line, rowid", filePath)
	if err != nil {
		return nil, fmt.Errorf("store: nodes by file: %w", err)
	}
	return nodes, nil
}

// SearchNodes returns nodes whose name contains q.Text, optionally restricted
// to q.Kind, ordered by name and capped at MaxSearchResults.
func (s *Store) SearchNodes(ctx context.Context, q SearchQuery) ([]*Node, error) {
	limit := q.Limit
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}

	query := "SELECT " + nodeCols + " FROM nodes WHERE "
	var args []any
	if s.caseSensitive {
		query += "instr(name, ?) > 0"
		args = append(args, q.Text)
	} else {
		query += `name LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(q.Text)+"%")
	}
	if q.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(q.Kind))
	}
	query += " ORDER BY name, file_path, start_line LIMIT ?"
	args = append(args, limit)

	nodes, err := s.queryNodes(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: search nodes: %w", err)
	}
	return nodes, nil
}

// FindExportedByName returns the first exported node named name that lives
// outside excludeFile, or nil when there is none.
func (s *Store) FindExportedByName(ctx context.Context, name, excludeFile string) (*Node, error) {
	n, err := s.queryNode(ctx,
		"SELECT "+nodeCols+" FROM nodes WHERE name = ? AND exported = 1 AND file_path != ? LIMIT 1",
		name, excludeFile)
	if err != nil {
		return nil, fmt.Errorf("store: find exported %q: %w", name, err)
	}
	return n, nil
}

// FindByNameAndKind returns the first node with the given name and kind, or
// nil when there is none.
func (s *Store) FindByNameAndKind(ctx context.Context, name string, kind Kind) (*Node, error) {
	n, err := s.queryNode(ctx,
		"SELECT "+nodeCols+" FROM nodes WHERE name = ? AND kind = ? LIMIT 1",
		name, string(kind))
	if err != nil {
		return nil, fmt.Errorf("store: find %s %q: %w", kind, name, err)
	}
	return n, nil
}
