// Package migrations embeds SQL migration files so the runner works
// regardless of working directory.
package migrations

import "embed"

// FS holds every .sql file in this directory.
//
//go:embed *.sql
var FS embed.FS
