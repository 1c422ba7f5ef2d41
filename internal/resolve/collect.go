package resolve

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/codegraph/internal/syntax"
)

func walk(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), fn)
	}
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	out := make([]*sitter.Node, 0, n.NamedChildCount())
	for i := 0; i < int(n.NamedChildCount()); i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte()
}

// --- TypeScript / JavaScript ---

func collectTS(tree *syntax.Tree) refs {
	var r refs
	walk(tree.Root(), func(n *sitter.Node) {
		switch n.Type() {
		case "import_statement":
			r.imports = append(r.imports, tsImportNames(tree, n)...)
		case "class_declaration", "abstract_class_declaration":
			if h, ok := tsHeritage(tree, n); ok {
				r.heritage = append(r.heritage, h)
			}
		}
	})
	return r
}

// tsImportNames returns the local bindings an import introduces, using the
// exported name for renamed specifiers.
func tsImportNames(tree *syntax.Tree, stmt *sitter.Node) []string {
	var out []string
	for _, c := range namedChildren(stmt) {
		switch c.Type() {
		case "import_clause":
			for _, part := range namedChildren(c) {
				switch part.Type() {
				case "identifier":
					out = append(out, tree.Text(part))
				case "named_imports":
					for _, spec := range namedChildren(part) {
						if spec.Type() != "import_specifier" {
							continue
						}
						if name := spec.ChildByFieldName("name"); name != nil {
							out = append(out, strings.Trim(tree.Text(name), `"'`))
						}
					}
				case "namespace_import":
					if id := childOfType(part, "identifier"); id != nil {
						out = append(out, tree.Text(id))
					}
				}
			}
		case "import_require_clause":
			if id := childOfType(c, "identifier"); id != nil {
				out = append(out, tree.Text(id))
			}
		}
	}
	return out
}

func tsHeritage(tree *syntax.Tree, class *sitter.Node) (heritage, bool) {
	name := class.ChildByFieldName("name")
	clause := childOfType(class, "class_heritage")
	if name == nil || clause == nil {
		return heritage{}, false
	}
	h := heritage{class: tree.Text(name)}
	for _, c := range namedChildren(clause) {
		switch c.Type() {
		case "extends_clause":
			for _, v := range namedChildren(c) {
				switch v.Type() {
				case "identifier":
					h.extends = append(h.extends, tree.Text(v))
				case "member_expression":
					if p := v.ChildByFieldName("property"); p != nil {
						h.extends = append(h.extends, tree.Text(p))
					}
				}
			}
		case "implements_clause":
			for _, v := range namedChildren(c) {
				if n := tsTypeName(tree, v); n != "" {
					h.implements = append(h.implements, n)
				}
			}
		}
	}
	return h, len(h.extends)+len(h.implements) > 0
}

// tsTypeName returns the rightmost identifier of a type reference.
func tsTypeName(tree *syntax.Tree, n *sitter.Node) string {
	switch n.Type() {
	case "type_identifier":
		return tree.Text(n)
	case "generic_type", "nested_type_identifier":
		if name := n.ChildByFieldName("name"); name != nil {
			return tsTypeName(tree, name)
		}
	}
	return ""
}

// --- Python ---

func collectPython(tree *syntax.Tree) refs {
	var r refs
	walk(tree.Root(), func(n *sitter.Node) {
		switch n.Type() {
		case "import_from_statement":
			module := n.ChildByFieldName("module_name")
			for _, c := range namedChildren(n) {
				if sameNode(c, module) {
					continue
				}
				if name := pyImportedName(tree, c); name != "" {
					r.imports = append(r.imports, name)
				}
			}
		case "import_statement":
			for _, c := range namedChildren(n) {
				if name := pyImportedName(tree, c); name != "" {
					r.imports = append(r.imports, name)
				}
			}
		case "class_definition":
			if h, ok := pyHeritage(tree, n); ok {
				r.heritage = append(r.heritage, h)
			}
		}
	})
	return r
}

// pyImportedName returns the last segment of an imported dotted name,
// ignoring any alias.
func pyImportedName(tree *syntax.Tree, n *sitter.Node) string {
	switch n.Type() {
	case "dotted_name":
		return lastSegment(tree.Text(n))
	case "aliased_import":
		if name := n.ChildByFieldName("name"); name != nil {
			return lastSegment(tree.Text(name))
		}
	}
	return ""
}

func lastSegment(dotted string) string {
	if i := strings.LastIndexByte(dotted, '.'); i >= 0 {
		return dotted[i+1:]
	}
	return dotted
}

func pyHeritage(tree *syntax.Tree, class *sitter.Node) (heritage, bool) {
	name := class.ChildByFieldName("name")
	supers := class.ChildByFieldName("superclasses")
	if name == nil || supers == nil {
		return heritage{}, false
	}
	h := heritage{class: tree.Text(name)}
	for _, arg := range namedChildren(supers) {
		switch arg.Type() {
		case "identifier":
			h.extends = append(h.extends, tree.Text(arg))
		case "attribute":
			if attr := arg.ChildByFieldName("attribute"); attr != nil {
				h.extends = append(h.extends, tree.Text(attr))
			}
		}
	}
	return h, len(h.extends) > 0
}
