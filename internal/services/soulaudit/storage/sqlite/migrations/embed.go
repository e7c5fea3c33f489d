package migrations

import "embed"

// FS contains embedded SQLite migrations for soul audit storage.
//
//go:embed *.sql
var FS embed.FS
