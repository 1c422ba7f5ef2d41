//go:build !purego

package store

// Default build: the cgo driver github.com/mattn/go-sqlite3.
//
// Build command:
//   CGO_ENABLED=1 go build ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the database/sql driver registered by this build.
	DriverName = "sqlite3"

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)

func dataSourceName(dbPath string) string {
	return dbPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000"
}
