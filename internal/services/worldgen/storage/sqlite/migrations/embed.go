package migrations

import "embed"

// FS contains embedded SQLite migrations for world storage.
//
//go:embed *.sql
var FS embed.FS
