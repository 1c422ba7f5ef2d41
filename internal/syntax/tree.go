package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Tree is a parsed document together with the source it was parsed from.
type Tree struct {
	tree   *sitter.Tree
	src    []byte
	family Family
	ext    string
}

// Root returns the root syntax node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the parsed bytes.
func (t *Tree) Source() []byte {
	return t.src
}

// Text returns the source text covered by n.
func (t *Tree) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(t.src)
}

// Family returns the language family of the document.
func (t *Tree) Family() Family {
	return t.family
}

// Ext returns the file extension the document was parsed for.
func (t *Tree) Ext() string {
	return t.ext
}

// Close releases the tree-sitter tree.
func (t *Tree) Close() {
	if t != nil && t.tree != nil {
		t.tree.Close()
	}
}
