//go:build purego

package store

// purego build: the SQLite driver is modernc.org/sqlite instead of
// go-sqlite3. Only the driver changes; the tree-sitter grammars still need
// cgo.
//
// Build command:
//   go build -tags purego ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver registered by this build.
	DriverName = "sqlite"

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)

func dataSourceName(dbPath string) string {
	return "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(30000)"
}
