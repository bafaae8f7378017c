package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kinship/migrations"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Initialize(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS, nil))
	return db
}

func insertUser(t *testing.T, q DBTX, email string, status int) int64 {
	t.Helper()
	id, err := q.ExecReturningID(context.Background(),
		"INSERT INTO users (email, password_hash, status) VALUES (?, ?, ?)", email, "x", status)
	require.NoError(t, err)
	return id
}
