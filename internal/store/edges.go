package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const edgeCols = `id, source_node_id, target_node_id, relation`

// InsertEdges inserts edges in a single transaction. An edge referencing a
// node that doesn't exist fails the foreign key check and rolls back the
// whole call.
func (s *Store) InsertEdges(ctx context.Context, edges []*Edge) error {
	if len(edges) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO edges (`+edgeCols+`) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare edge insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range edges {
		if !e.Relation.Valid() {
			return fmt.Errorf("store: insert edge: invalid relation %q", e.Relation)
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.SourceID, e.TargetID, string(e.Relation)); err != nil {
			return fmt.Errorf("store: insert edge %s -> %s: %w", e.SourceID, e.TargetID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit edges: %w", err)
	}
	return nil
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...any) ([]*Edge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []*Edge
	for rows.Next() {
		e := &Edge{}
		var rel string
		if err := rows.Scan(&e.ID, &e.SourceID, &e.TargetID, &rel); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		e.Relation = Relation(rel)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// EdgesBySource returns the edges leaving nodeID.
func (s *Store) EdgesBySource(ctx context.Context, nodeID string) ([]*Edge, error) {
	edges, err := s.queryEdges(ctx,
		"SELECT "+edgeCols+" FROM edges WHERE source_node_id = ? ORDER BY rowid", nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: edges by source: %w", err)
	}
	return edges, nil
}

// EdgesByTarget returns the edges pointing at nodeID.
func (s *Store) EdgesByTarget(ctx context.Context, nodeID string) ([]*Edge, error) {
	edges, err := s.queryEdges(ctx,
		"SELECT "+edgeCols+" FROM edges WHERE target_node_id = ? ORDER BY rowid", nodeID)
	if err != nil {
		return nil, fmt.Errorf("store: edges by target: %w", err)
	}
	return edges, nil
}

// Relationships returns edges joined with their endpoints. When name is
// non-empty only edges whose source or target is named name are returned.
// The result is capped at limit (MaxSearchResults when limit is out of range).
func (s *Store) Relationships(ctx context.Context, name string, limit int) ([]Relationship, error) {
	if limit <= 0 || limit > MaxSearchResults {
		limit = MaxSearchResults
	}
	query := `SELECT src.file_path, src.name, src.kind, e.relation, dst.file_path, dst.name, dst.kind
		FROM edges e
		JOIN nodes src ON src.id = e.source_node_id
		JOIN nodes dst ON dst.id = e.target_node_id`
	var args []any
	if name != "" {
		query += " WHERE src.name = ? OR dst.name = ?"
		args = append(args, name, name)
	}
	query += " ORDER BY src.file_path, src.name, e.relation, dst.name LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: relationships: %w", err)
	}
	defer rows.Close()
	var rels []Relationship
	for rows.Next() {
		var (
			r                Relationship
			srcKind, dstKind string
			rel              string
		)
		if err := rows.Scan(&r.Source.File, &r.Source.Name, &srcKind, &rel,
			&r.Target.File, &r.Target.Name, &dstKind); err != nil {
			return nil, fmt.Errorf("store: scan relationship: %w", err)
		}
		r.Source.Kind = Kind(srcKind)
		r.Target.Kind = Kind(dstKind)
		r.Relation = Relation(rel)
		rels = append(rels, r)
	}
	return rels, rows.Err()
}
