package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// NewTestDB creates a fresh SQLite database in a temporary directory with
// all migrations applied.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenAndMigrate(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("creating test database: %v", err)
	}

	t.Cleanup(func() { db.Close() })

	return db
}
