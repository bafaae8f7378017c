package database

import (
	"database/sql"
	"strconv"
	"strings"
)

// Dialect hides the differences between the supported SQL backends.
// Repositories always write ? placeholders.
type Dialect interface {
	DriverName() string
	DSN(config DialectConfig) (string, error)

	// RewriteQuery converts ? placeholders into the backend's syntax
	RewriteQuery(query string) string

	// SupportsLastInsertId is false for Postgres, which needs RETURNING id
	SupportsLastInsertId() bool

	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir names the directory under migrations/ holding this dialect's SQL
	MigrationsSubdir() string
	CreateMigrationsTableQuery() string
}

// DialectConfig locates the database: Path for SQLite, URL for the network backends
type DialectConfig struct {
	Path string
	URL  string
}

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, ...
// leaving question marks inside single-quoted literals alone.
func rewritePlaceholdersToNumbered(query string) string {
	var (
		b       strings.Builder
		n       int
		literal bool
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			literal = !literal
			b.WriteByte(c)
		case c == '?' && !literal:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
