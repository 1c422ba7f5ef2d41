// Package extract turns a syntax tree into the declaration nodes it contains.
//
// Extraction is a pure function of the tree and the file path: nothing here
// reads files or touches the store. Each language family has one visitor that
// sees every syntax node in pre-order and appends records to an accumulator.
package extract

import (
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/codegraph/internal/store"
	"github.com/jward/codegraph/internal/syntax"
)

// MaxSignatureLen is the number of characters a signature keeps before it is
// cut and suffixed with "...".
const MaxSignatureLen = 200

// visitor inspects a single syntax node and records any declaration it finds.
type visitor interface {
	visit(n *sitter.Node, acc *accumulator)
}

// Extract returns the declarations of tree in source order. filePath is
// stored on every node verbatim. Trees of an unknown family yield nil.
func Extract(tree *syntax.Tree, filePath string) []*store.Node {
	if tree == nil {
		return nil
	}
	var v visitor
	switch tree.Family() {
	case syntax.FamilyTypeScript:
		v = tsVisitor{}
	case syntax.FamilyPython:
		v = pyVisitor{}
	default:
		return nil
	}
	acc := &accumulator{tree: tree, file: filePath}
	walk(tree.Root(), func(n *sitter.Node) { v.visit(n, acc) })
	return acc.nodes
}

// walk calls fn for n and every descendant in pre-order. Recursion never
// stops early, so nested declarations are always reached.
func walk(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

type accumulator struct {
	tree  *syntax.Tree
	file  string
	nodes []*store.Node
}

// add records a declaration. span is the node whose lines and first source
// line describe the declaration; it may be an enclosing statement.
func (a *accumulator) add(span *sitter.Node, name string, kind store.Kind, exported bool, doc *string) {
	if name == "" {
		return
	}
	start := int(span.StartPoint().Row) + 1
	end := int(span.EndPoint().Row) + 1
	if end < start {
		end = start
	}
	a.nodes = append(a.nodes, &store.Node{
		FilePath:   a.file,
		Name:       name,
		Kind:       kind,
		StartLine:  start,
		EndLine:    end,
		Signature:  signature(a.tree.Source(), span.StartByte()),
		DocComment: doc,
		Exported:   exported,
	})
}

func (a *accumulator) text(n *sitter.Node) string {
	return a.tree.Text(n)
}

// fieldText returns the text of n's named field, or "" when absent.
func (a *accumulator) fieldText(n *sitter.Node, field string) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return a.text(c)
}

// signature returns the trimmed source line containing offset.
func signature(src []byte, offset uint32) string {
	if int(offset) > len(src) {
		return ""
	}
	lineStart := strings.LastIndexByte(string(src[:offset]), '\n') + 1
	line := string(src[lineStart:])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return truncate(strings.TrimSpace(line))
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= MaxSignatureLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxSignatureLen]) + "..."
}

var docPrefixes = []string{"/**", `"""`, "'''"}

// precedingDoc returns the text of the sibling right before anchor when it is
// a documentation comment. Only that one sibling is examined.
func (a *accumulator) precedingDoc(anchor *sitter.Node) *string {
	prev := anchor.PrevNamedSibling()
	if prev == nil || prev.Type() != "comment" {
		return nil
	}
	text := a.text(prev)
	for _, p := range docPrefixes {
		if strings.HasPrefix(text, p) {
			return &text
		}
	}
	return nil
}
