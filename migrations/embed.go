// Package migrations embeds the per-dialect schema migrations.
package migrations

import "embed"

// FS holds the sqlite, postgres and mysql migration directories
//
//go:embed sqlite/*.sql postgres/*.sql mysql/*.sql
var FS embed.FS
