package extract

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/codegraph/internal/store"
)

type pyVisitor struct{}

func (pyVisitor) visit(n *sitter.Node, acc *accumulator) {
	var kind store.Kind
	switch n.Type() {
	case "class_definition":
		kind = store.KindClass
	case "function_definition":
		kind = store.KindFunction
		if pyInClassBody(n) {
			kind = store.KindMethod
		}
	default:
		return
	}

	anchor := n
	if p := n.Parent(); p != nil && p.Type() == "decorated_definition" {
		anchor = p
	}
	exported := anchor.Parent() != nil && anchor.Parent().Type() == "module"

	doc := acc.precedingDoc(anchor)
	if doc == nil {
		doc = pyDocstring(n, acc)
	}
	acc.add(n, acc.fieldText(n, "name"), kind, exported, doc)
}

// pyInClassBody reports whether the nearest enclosing definition of fn is a
// class. Nested functions inside methods are plain functions.
func pyInClassBody(fn *sitter.Node) bool {
	for p := fn.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "class_definition":
			return true
		case "function_definition":
			return false
		}
	}
	return false
}

// pyDocstring returns the triple-quoted string that opens the body of def.
func pyDocstring(def *sitter.Node, acc *accumulator) *string {
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return nil
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return nil
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return nil
	}
	text := acc.text(str)
	if strings.HasPrefix(text, `"""`) || strings.HasPrefix(text, "'''") {
		return &text
	}
	return nil
}
