// Package testing provides testing utilities shared across package test files.
package testing

import (
	"database/sql"
	"fmt"
	"os"
	"testing"

	"github.com/quietridge/analystd/internal/database"
	_ "modernc.org/sqlite"
)

// NewTestDB creates a temp-file SQLite database with the production "analystd"
// schema applied. Returns the database instance and an idempotent cleanup
// function that closes the connection and removes the backing file.
func NewTestDB(t *testing.T) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "analystd_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    "analystd",
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
		if err := os.Remove(tmpPath); err != nil {
			t.Logf("warning: failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// NewTestDBWithSchema creates a temp-file SQLite database and executes a
// caller-supplied schema instead of the production schema. Useful for testing
// a single repository in isolation against a minimal table set.
func NewTestDBWithSchema(t *testing.T, schema string) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "analystd_test_*.db")
	if err != nil {
		t.Fatalf("failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    "analystd_custom",
	})
	if err != nil {
		_ = os.Remove(tmpPath)
		t.Fatalf("failed to create test database: %v", err)
	}

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			_ = db.Close()
			_ = os.Remove(tmpPath)
			t.Fatalf("failed to execute custom schema: %v", err)
		}
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
		if err := os.Remove(tmpPath); err != nil {
			t.Logf("warning: failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// CreateTempDBFile creates a temporary database file path for testing.
// Returns the path and a cleanup function that removes the file.
func CreateTempDBFile(t *testing.T, name string) (string, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", fmt.Sprintf("%s_*.db", name))
	if err != nil {
		t.Fatalf("failed to create temporary database file: %v", err)
	}
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	return tmpPath, func() {
		if err := os.Remove(tmpPath); err != nil {
			t.Logf("warning: failed to remove temporary database file %s: %v", tmpPath, err)
		}
	}
}

// NewTestDBFromFile creates a test database backed by a named temporary file
// rather than an anonymous one, for tests that assert on file-level behavior
// (WAL checkpointing, file size, vacuum).
func NewTestDBFromFile(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpPath, cleanupFile := CreateTempDBFile(t, name)

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    "analystd",
	})
	if err != nil {
		cleanupFile()
		t.Fatalf("failed to create test database from file %s: %v", tmpPath, err)
	}

	if err := db.Migrate(); err != nil {
		_ = db.Close()
		cleanupFile()
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db, func() {
		if err := db.Close(); err != nil {
			t.Logf("warning: failed to close test database: %v", err)
		}
		cleanupFile()
	}
}

// GetRawConnection returns the underlying *sql.DB connection, for tests that
// need direct access (e.g. to simulate a driver-level failure).
func GetRawConnection(db *database.DB) *sql.DB {
	return db.Conn()
}
