package migrations

import "embed"

// FS contains embedded SQLite migrations for turnout storage.
//
//go:embed *.sql
var FS embed.FS
