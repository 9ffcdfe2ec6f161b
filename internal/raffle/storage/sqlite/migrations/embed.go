package migrations

import "embed"

// FS contains embedded SQLite migrations for raffle storage.
//
//go:embed *.sql
var FS embed.FS
