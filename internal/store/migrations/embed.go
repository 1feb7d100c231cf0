// Package migrations embeds the SQL that bootstraps the SQLite document table.
package migrations

import "embed"

// FS contains all SQL migration files embedded at compile time.
//
//go:embed *.sql
var FS embed.FS
