// Package migrations embeds the SQL migrations for the PostgreSQL reference store.
package migrations

import "embed"

// FS holds the migration files, applied in version order by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
