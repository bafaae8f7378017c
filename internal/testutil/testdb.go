// Package testutil provides a migrated SQLite database for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"kinship/internal/database"
	"kinship/internal/models"
	"kinship/migrations"
)

// NewDB opens a fresh SQLite database in a temp dir with all migrations applied
func NewDB(t testing.TB) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "kinship.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS, nil))
	return db
}

// InsertUser inserts a bare user row and returns its ID
func InsertUser(t testing.TB, q database.DBTX, email string, status models.UserStatus, role models.Role) int64 {
	t.Helper()
	id, err := q.ExecReturningID(context.Background(),
		"INSERT INTO users (email, password_hash, status, role) VALUES (?, ?, ?, ?)", email, "hash", status, role)
	require.NoError(t, err)
	return id
}

// InsertProfile inserts a profile row for userID
func InsertProfile(t testing.TB, q database.DBTX, userID int64, first, last string, gender *string, dob interface{}) {
	t.Helper()
	_, err := q.ExecContext(context.Background(),
		"INSERT INTO user_profiles (user_id, first_name, last_name, gender, dob) VALUES (?, ?, ?, ?, ?)",
		userID, first, last, gender, dob)
	require.NoError(t, err)
}

// InsertFamily inserts a family row and returns its ID
func InsertFamily(t testing.TB, q database.DBTX, code string, status models.FamilyStatus, createdBy *int64) int64 {
	t.Helper()
	id, err := q.ExecReturningID(context.Background(),
		"INSERT INTO families (family_code, name, status, created_by) VALUES (?, ?, ?, ?)", code, code+" family", status, createdBy)
	require.NoError(t, err)
	return id
}

// InsertMember inserts a membership row and returns its ID
func InsertMember(t testing.TB, q database.DBTX, memberID int64, code string, status models.ApproveStatus) int64 {
	t.Helper()
	id, err := q.ExecReturningID(context.Background(),
		"INSERT INTO family_members (member_id, family_code, approve_status) VALUES (?, ?, ?)", memberID, code, status)
	require.NoError(t, err)
	return id
}

// Ptr returns a pointer to v
func Ptr[T any](v T) *T {
	return &v
}
