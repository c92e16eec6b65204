// Package migrations embeds the engine's SQLite schema migrations.
package migrations

import "embed"

// FS holds the engine schema migration files.
//
//go:embed *.sql
var FS embed.FS
