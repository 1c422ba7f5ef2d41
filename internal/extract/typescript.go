package extract

import (
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/codegraph/internal/store"
)

// tsDeclKinds maps TypeScript/JavaScript declaration node types to the kind
// they produce. Variable declarators are handled separately.
var tsDeclKinds = map[string]store.Kind{
	"function_declaration":           store.KindFunction,
	"generator_function_declaration": store.KindFunction,
	"class_declaration":              store.KindClass,
	"abstract_class_declaration":     store.KindClass,
	"interface_declaration":          store.KindInterface,
	"type_alias_declaration":         store.KindTypeAlias,
	"enum_declaration":               store.KindEnum,
	"method_definition":              store.KindMethod,
}

// tsFunctionValues are the initializer types that make a variable a
// function-valued binding worth indexing.
var tsFunctionValues = map[string]bool{
	"arrow_function":      true,
	"function_expression": true,
	"function":            true,
	"generator_function":  true,
}

type tsVisitor struct{}

func (tsVisitor) visit(n *sitter.Node, acc *accumulator) {
	if n.Type() == "variable_declarator" {
		visitTSDeclarator(n, acc)
		return
	}
	kind, ok := tsDeclKinds[n.Type()]
	if !ok {
		return
	}
	acc.add(n, acc.fieldText(n, "name"), kind, tsExported(n), acc.precedingDoc(tsDocAnchor(n)))
}

func visitTSDeclarator(n *sitter.Node, acc *accumulator) {
	value := n.ChildByFieldName("value")
	if value == nil || !tsFunctionValues[value.Type()] {
		return
	}
	name := n.ChildByFieldName("name")
	if name == nil || name.Type() != "identifier" {
		return
	}
	decl := n.Parent()
	if decl == nil || (decl.Type() != "lexical_declaration" && decl.Type() != "variable_declaration") {
		decl = n
	}
	acc.add(decl, acc.text(name), store.KindVariable, tsExported(decl), acc.precedingDoc(tsDocAnchor(decl)))
}

// tsExported reports whether n sits directly under an export statement or
// follows an "export" token in the same parent.
func tsExported(n *sitter.Node) bool {
	if p := n.Parent(); p != nil && p.Type() == "export_statement" {
		return true
	}
	for s := n.PrevSibling(); s != nil; s = s.PrevSibling() {
		if !s.IsNamed() && s.Type() == "export" {
			return true
		}
	}
	return false
}

// tsDocAnchor is the node whose preceding sibling may hold the doc comment.
func tsDocAnchor(n *sitter.Node) *sitter.Node {
	if p := n.Parent(); p != nil && p.Type() == "export_statement" {
		return p
	}
	return n
}
