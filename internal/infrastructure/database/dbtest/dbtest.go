// Package dbtest opens migrated in-memory databases for package tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/nerrad567/quantum-task-core/internal/infrastructure/database"
	_ "github.com/nerrad567/quantum-task-core/migrations" // registers embedded migrations
)

// Open returns an in-memory SQLite database with every migration applied.
// It is closed when the test finishes.
func Open(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:      string(database.SQLite),
		Path:        ":memory:",
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
