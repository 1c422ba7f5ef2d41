// Package resolve derives relationship edges for one file from its syntax
// tree, the nodes already extracted for it, and the global node set.
//
// Resolution is name-based and first-match-wins: there is no scope or path
// disambiguation. It must run after every file's nodes are persisted, or
// edges to files indexed later are silently missing.
package resolve

import (
	"context"
	"fmt"

	"github.com/jward/codegraph/internal/store"
	"github.com/jward/codegraph/internal/syntax"
)

// Lookup is the global node set resolution reads from. *store.Store
// satisfies it.
type Lookup interface {
	FindExportedByName(ctx context.Context, name, excludeFile string) (*store.Node, error)
	FindByNameAndKind(ctx context.Context, name string, kind store.Kind) (*store.Node, error)
}

// heritage is one class declaration with the names it inherits from.
type heritage struct {
	class      string
	extends    []string
	implements []string
}

// refs is everything a file references by name.
type refs struct {
	imports  []string
	heritage []heritage
}

// Resolve returns the edges filePath contributes. fileNodes are the nodes
// persisted for filePath and must carry their ids. Unresolved names produce
// no edge. Lookup errors are returned.
func Resolve(ctx context.Context, lookup Lookup, tree *syntax.Tree, filePath string, fileNodes []*store.Node) ([]*store.Edge, error) {
	if tree == nil || len(fileNodes) == 0 {
		return nil, nil
	}
	var r refs
	switch tree.Family() {
	case syntax.FamilyTypeScript:
		r = collectTS(tree)
	case syntax.FamilyPython:
		r = collectPython(tree)
	default:
		return nil, nil
	}

	b := &edgeBuilder{seen: make(map[edgeKey]bool)}

	if source := firstExported(fileNodes); source != nil {
		for _, name := range r.imports {
			target, err := lookup.FindExportedByName(ctx, name, filePath)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: import %q: %w", filePath, name, err)
			}
			b.add(source, target, store.RelationImports)
		}
	}

	for _, h := range r.heritage {
		class := findLocal(fileNodes, h.class, store.KindClass)
		if class == nil {
			continue
		}
		for _, name := range h.extends {
			target, err := lookup.FindByNameAndKind(ctx, name, store.KindClass)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: extends %q: %w", filePath, name, err)
			}
			b.add(class, target, store.RelationExtends)
		}
		for _, name := range h.implements {
			target, err := lookup.FindByNameAndKind(ctx, name, store.KindInterface)
			if err != nil {
				return nil, fmt.Errorf("resolve %s: implements %q: %w", filePath, name, err)
			}
			b.add(class, target, store.RelationImplements)
		}
	}
	return b.edges, nil
}

type edgeKey struct {
	source, target string
	relation       store.Relation
}

// edgeBuilder collects edges, dropping repeated triples.
type edgeBuilder struct {
	edges []*store.Edge
	seen  map[edgeKey]bool
}

func (b *edgeBuilder) add(source, target *store.Node, rel store.Relation) {
	if source == nil || target == nil {
		return
	}
	k := edgeKey{source.ID, target.ID, rel}
	if b.seen[k] {
		return
	}
	b.seen[k] = true
	b.edges = append(b.edges, &store.Edge{SourceID: source.ID, TargetID: target.ID, Relation: rel})
}

// firstExported is the node import edges originate from.
func firstExported(nodes []*store.Node) *store.Node {
	for _, n := range nodes {
		if n.Exported {
			return n
		}
	}
	return nil
}

func findLocal(nodes []*store.Node, name string, kind store.Kind) *store.Node {
	for _, n := range nodes {
		if n.Name == name && n.Kind == kind {
			return n
		}
	}
	return nil
}
