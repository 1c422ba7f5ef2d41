package store

import "time"

// Kind is the declaration kind of a Node.
type Kind string

const (
	KindFunction  Kind = "function"
	KindClass     Kind = "class"
	KindVariable  Kind = "variable"
	KindInterface Kind = "interface"
	KindMethod    Kind = "method"
	KindTypeAlias Kind = "type_alias"
	KindEnum      Kind = "enum"
)

// Kinds lists every valid Kind in schema order.
var Kinds = []Kind{
	KindFunction, KindClass, KindVariable, KindInterface,
	KindMethod, KindTypeAlias, KindEnum,
}

// Valid reports whether k is one of the fixed node kinds.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Relation is the kind of a directed Edge.
type Relation string

const (
	RelationImports Relation = "imports"
	// RelationCalls is reserved in the schema. No resolver produces it.
	RelationCalls      Relation = "calls"
	RelationExtends    Relation = "extends"
	RelationImplements Relation = "implements"
)

// Relations lists every valid Relation in schema order.
var Relations = []Relation{RelationImports, RelationCalls, RelationExtends, RelationImplements}

// Valid reports whether r is one of the fixed relations.
func (r Relation) Valid() bool {
	for _, v := range Relations {
		if r == v {
			return true
		}
	}
	return false
}

// Node is an indexed declaration. Lines are 1-based and inclusive.
type Node struct {
	ID         string
	FilePath   string
	Name       string
	Kind       Kind
	StartLine  int
	EndLine    int
	Signature  string
	DocComment *string
	Exported   bool
	UpdatedAt  time.Time
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	ID       string
	SourceID string
	TargetID string
	Relation Relation
}

// Endpoint identifies one side of a Relationship without exposing node ids.
type Endpoint struct {
	File string `json:"file"`
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Relationship is an edge joined with both of its endpoint nodes.
type Relationship struct {
	Source   Endpoint `json:"source"`
	Relation Relation `json:"relation"`
	Target   Endpoint `json:"target"`
}

// Counts summarizes the contents of the Store.
type Counts struct {
	Files int `json:"files"`
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// SearchQuery selects nodes by name substring and optional kind.
type SearchQuery struct {
	Text  string
	Kind  Kind // empty means any kind
	Limit int  // <= 0 or above MaxSearchResults means MaxSearchResults
}
