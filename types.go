package codegraph

import (
	"time"

	"github.com/jward/codegraph/internal/store"
)

// Public type aliases for internal store types used in the QueryBuilder API.
// These are Go type aliases (=), identical to the internal types at compile
// time.

type Store = store.Store
type Node = store.Node
type Edge = store.Edge
type Kind = store.Kind
type Relation = store.Relation
type Relationship = store.Relationship
type Endpoint = store.Endpoint
type Counts = store.Counts

const (
	KindFunction  = store.KindFunction
	KindClass     = store.KindClass
	KindVariable  = store.KindVariable
	KindInterface = store.KindInterface
	KindMethod    = store.KindMethod
	KindTypeAlias = store.KindTypeAlias
	KindEnum      = store.KindEnum

	RelationImports    = store.RelationImports
	RelationCalls      = store.RelationCalls
	RelationExtends    = store.RelationExtends
	RelationImplements = store.RelationImplements
)

// Summary reports the outcome of one IndexProject run.
type Summary struct {
	// FilesScanned counts every enumerated file, scan-only ones included.
	FilesScanned int `json:"files_scanned"`
	// FilesIndexed counts parsed files whose nodes were persisted.
	FilesIndexed int `json:"files_indexed"`
	// FilesSkipped counts files that failed to read, parse or resolve.
	// Each file is counted once.
	FilesSkipped int           `json:"files_skipped"`
	NodesCreated int           `json:"nodes_created"`
	EdgesCreated int           `json:"edges_created"`
	Duration     time.Duration `json:"duration"`
}
