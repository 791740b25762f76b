package database

import (
	"context"
	"embed"
	"errors"
	"testing"
)

//go:embed testdata/sqlite3/*.sql
var testMigrationsFS embed.FS

// useMigrations swaps the package migration source for the test.
func useMigrations(t *testing.T, fsys embed.FS, dir string) {
	t.Helper()
	origFS, origDir := MigrationsFS, MigrationsDir
	t.Cleanup(func() {
		MigrationsFS, MigrationsDir = origFS, origDir
	})
	MigrationsFS, MigrationsDir = fsys, dir
}

func widgetTableCount(t *testing.T, db *DB) int {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='test_widgets'",
	).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n
}

func TestMigrate(t *testing.T) {
	useMigrations(t, testMigrationsFS, "testdata")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if widgetTableCount(t, db) != 1 {
		t.Fatal("table test_widgets not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 0 {
		t.Fatalf("applied=%d pending=%d, want 1/0", len(applied), len(pending))
	}
	if applied[0].Version != "20260301_090000" {
		t.Errorf("applied version = %q", applied[0].Version)
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("applied_at not recorded")
	}

	// Idempotent.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, testMigrationsFS, "testdata")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if widgetTableCount(t, db) != 0 {
		t.Error("table test_widgets should have been dropped")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d after rollback, want 0/1", len(applied), len(pending))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrateDown_UnknownVersion(t *testing.T) {
	useMigrations(t, testMigrationsFS, "testdata")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.ExecContext(ctx,
		"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
		"29991231_235959", "2999-12-31T23:59:59.000000Z",
	); err != nil {
		t.Fatalf("insert record: %v", err)
	}

	if err := db.MigrateDown(ctx); !errors.Is(err, ErrMigrationMissing) {
		t.Errorf("MigrateDown() error = %v, want ErrMigrationMissing", err)
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	var empty embed.FS
	useMigrations(t, empty, ".")
	db := openTestDB(t)
	defer db.Close() //nolint:errcheck // Test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() with no migrations error = %v", err)
	}
}

func TestMigrationsDirPerDialect(t *testing.T) {
	origDir := MigrationsDir
	defer func() { MigrationsDir = origDir }()
	MigrationsDir = "."

	tests := []struct {
		dialect Dialect
		want    string
	}{
		{SQLite, "sqlite3"},
		{Postgres, "postgres"},
		{"", "sqlite3"},
	}
	for _, tt := range tests {
		db := &DB{dialect: tt.dialect}
		if got := db.migrationsDir(); got != tt.want {
			t.Errorf("migrationsDir() for %q = %q, want %q", tt.dialect, got, tt.want)
		}
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOk      bool
	}{
		{"20260301_090000_create_widgets.up.sql", "20260301_090000", "create_widgets", true, true},
		{"20260301_090000_create_widgets.down.sql", "20260301_090000", "create_widgets", false, true},
		{"20260415_100000_add_note_to_tasks.up.sql", "20260415_100000", "add_note_to_tasks", true, true},
		{"20260415_100000.up.sql", "20260415_100000", "20260415_100000", true, true},
		{"readme.txt", "", "", false, false},
		{"20260301_090000_create_widgets.sql", "", "", false, false},
		{"invalid.up.sql", "", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)",
					version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
