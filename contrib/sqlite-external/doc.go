// Package sqliteexternal provides optional external SQLite drivers.
//
// This package is part of the main github.com/FocuswithJustin/redline module
// and provides the CGO-based SQLite driver for performance-critical setups.
//
// # CGO SQLite Driver
//
// To use the CGO driver (github.com/mattn/go-sqlite3):
//
//	import _ "github.com/FocuswithJustin/redline/contrib/sqlite-external"
//
// Build with:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite
//
// # Default Pure Go Driver
//
// By default, Redline uses the pure Go modernc.org/sqlite driver, which
// requires no CGO. See github.com/FocuswithJustin/redline/core/sqlite.
package sqliteexternal
