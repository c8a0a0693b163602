// Package dbmigrations exposes embedded SQL migrations for the
// collector's binaries.
package dbmigrations

import "embed"

// Files contains the embedded SQL migrations bundled into the
// collector's binaries.
//
//go:embed *.sql
var Files embed.FS
