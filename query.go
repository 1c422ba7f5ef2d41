package codegraph

import (
	"context"
	"fmt"

	"github.com/jward/codegraph/internal/store"
)

// QueryBuilder provides the read-side API over the Store.
type QueryBuilder struct {
	store *store.Store
	limit int
}

// FileNodes returns the nodes declared in one project-relative file, ordered
// by start line.
func (q *QueryBuilder) FileNodes(ctx context.Context, file string) ([]*Node, error) {
	nodes, err := q.store.NodesByFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("file nodes: %w", err)
	}
	return nodes, nil
}

// Search returns nodes whose name contains text, optionally filtered by kind.
// A limit <= 0 uses the engine's configured search limit. Results never
// exceed store.MaxSearchResults.
func (q *QueryBuilder) Search(ctx context.Context, text string, kind Kind, limit int) ([]*Node, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("search: unknown kind %q", kind)
	}
	if limit <= 0 {
		limit = q.limit
	}
	nodes, err := q.store.SearchNodes(ctx, store.SearchQuery{Text: text, Kind: kind, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return nodes, nil
}

// Node returns the node with the given id, or nil if it does not exist.
func (q *QueryBuilder) Node(ctx context.Context, id string) (*Node, error) {
	n, err := q.store.NodeByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	return n, nil
}

// Relationships lists edges with both endpoints. A non-empty name restricts
// the result to edges touching a node of that name.
func (q *QueryBuilder) Relationships(ctx context.Context, name string) ([]Relationship, error) {
	rels, err := q.store.Relationships(ctx, name, q.limit)
	if err != nil {
		return nil, fmt.Errorf("relationships: %w", err)
	}
	return rels, nil
}

// Outgoing returns the edges whose source is the node id.
func (q *QueryBuilder) Outgoing(ctx context.Context, id string) ([]*Edge, error) {
	edges, err := q.store.EdgesBySource(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("outgoing: %w", err)
	}
	return edges, nil
}

// Incoming returns the edges whose target is the node id.
func (q *QueryBuilder) Incoming(ctx context.Context, id string) ([]*Edge, error) {
	edges, err := q.store.EdgesByTarget(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("incoming: %w", err)
	}
	return edges, nil
}

// Files returns every file that has at least one node.
func (q *QueryBuilder) Files(ctx context.Context) ([]string, error) {
	paths, err := q.store.FilePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("files: %w", err)
	}
	return paths, nil
}

// Stats returns index counts.
func (q *QueryBuilder) Stats(ctx context.Context) (Counts, error) {
	c, err := q.store.Counts(ctx)
	if err != nil {
		return Counts{}, fmt.Errorf("stats: %w", err)
	}
	return c, nil
}
