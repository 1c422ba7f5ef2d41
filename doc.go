// Package codegraph indexes a source tree into a graph of declarations and
// the relationships between them, stored in SQLite.
//
// # Pipeline
//
// [Engine.IndexProject] runs two passes over every supported file under the
// project root:
//
//  1. Extract: parse the file with tree-sitter and persist one node per
//     declaration (functions, classes, methods, interfaces, type aliases,
//     enums and function-valued variables).
//
//  2. Resolve: parse the file again and derive imports, extends and
//     implements edges against the nodes of every file in the store.
//
// Resolution is name based and first-match-wins, so it only sees the whole
// project once the first pass has finished.
//
// # Usage
//
//	e, err := codegraph.New(".codegraph/index.db", codegraph.WithWatch(false))
//	if err != nil { ... }
//	defer e.Close()
//
//	sum, err := e.IndexProject(ctx, "path/to/project")
//	nodes, err := e.Query().Search(ctx, "Serv", codegraph.KindClass, 20)
//
// # Watching
//
// Unless disabled with [WithWatch], IndexProject leaves a watcher running on
// the root. Every add or change re-indexes that one file; deletes drop its
// rows. After [WithDebounce] changes, or once the project has been quiet for
// the idle delay, the configured [watch.Regenerator] is invoked.
//
// # Languages
//
// TypeScript and JavaScript (.ts, .tsx, .js, .jsx) and Python (.py) are
// parsed. Go and Rust files are counted during a scan but not parsed.
package codegraph
