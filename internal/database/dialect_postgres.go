package database

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// PostgresDialect implements Dialect for PostgreSQL. It works with either the
// lib/pq driver ("postgres") or the pgx stdlib driver ("pgx").
type PostgresDialect struct {
	driver string
}

// NewPostgresDialect creates a new PostgreSQL dialect using lib/pq
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{driver: "postgres"}
}

// NewPgxDialect creates a new PostgreSQL dialect using pgx
func NewPgxDialect() *PostgresDialect {
	return &PostgresDialect{driver: "pgx"}
}

func (d *PostgresDialect) DriverName() string {
	return d.driver
}

func (d *PostgresDialect) DSN(config DialectConfig) (string, error) {
	if config.URL == "" {
		return "", errors.New("DATABASE_URL is required for postgres")
	}
	return config.URL, nil
}

func (d *PostgresDialect) RewriteQuery(query string) string {
	// PostgreSQL uses $1, $2, etc. instead of ?
	return rewritePlaceholdersToNumbered(query)
}

func (d *PostgresDialect) SupportsLastInsertId() bool {
	// PostgreSQL doesn't support LastInsertId(), needs RETURNING clause
	return false
}

func (d *PostgresDialect) ConfigureConnection(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)

	// PostgreSQL has foreign keys enabled by default, no pragma needed
	return nil
}

func (d *PostgresDialect) MigrationsSubdir() string {
	return "postgres"
}

func (d *PostgresDialect) CreateMigrationsTableQuery() string {
	return `
		CREATE TABLE IF NOT EXISTS migrations (
			id BIGSERIAL PRIMARY KEY,
			filename TEXT UNIQUE NOT NULL,
			executed_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
	`
}
