package database

import (
	"context"
	"testing"
	"testing/fstest"
)

// testMigrations is a two-step schema in an in-memory filesystem.
func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"20260101_000000_widgets.up.sql":        {Data: []byte(`CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"20260101_000000_widgets.down.sql":      {Data: []byte(`DROP TABLE widgets;`)},
		"20260102_000000_widget_color.up.sql":   {Data: []byte(`ALTER TABLE widgets ADD COLUMN color TEXT;`)},
		"20260102_000000_widget_color.down.sql": {Data: []byte(`ALTER TABLE widgets DROP COLUMN color;`)},
		"README.md":                             {Data: []byte("ignored")},
	}
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&n)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	n, err := db.Migrate(ctx, testMigrations())
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Migrate() applied %d, want 2", n)
	}
	if !tableExists(t, db, "widgets") {
		t.Fatal("widgets table not created")
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations())
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("status = %d applied, %d pending, want 2, 0", len(applied), len(pending))
	}
	if applied[0].AppliedAt.IsZero() {
		t.Error("AppliedAt not recorded")
	}

	// Idempotent.
	n, err = db.Migrate(ctx, testMigrations())
	if err != nil || n != 0 {
		t.Errorf("second Migrate() = %d, %v, want 0, nil", n, err)
	}
}

func TestMigrate_FailureStops(t *testing.T) {
	db := openTestDB(t)
	fsys := testMigrations()
	fsys["20260102_000000_widget_color.up.sql"] = &fstest.MapFile{Data: []byte(`THIS IS NOT SQL;`)}

	n, err := db.Migrate(context.Background(), fsys)
	if err == nil {
		t.Fatal("Migrate() succeeded with a broken migration")
	}
	if n != 1 {
		t.Errorf("Migrate() applied %d before failing, want 1", n)
	}
	if !tableExists(t, db, "widgets") {
		t.Error("first migration rolled back")
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.Migrate(ctx, testMigrations()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations()); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if err := db.MigrateDown(ctx, testMigrations()); err != nil {
		t.Fatalf("second MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "widgets") {
		t.Error("widgets table still exists after rolling back everything")
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx, testMigrations()); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrate_NilFS(t *testing.T) {
	db := openTestDB(t)
	n, err := db.Migrate(context.Background(), nil)
	if err != nil || n != 0 {
		t.Errorf("Migrate(nil) = %d, %v, want 0, nil", n, err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260101_000000_state_history.up.sql", "20260101_000000", true, true},
		{"20260101_000000_state_history.down.sql", "20260101_000000", false, true},
		{"20260101_000000.up.sql", "20260101_000000", true, true},
		{"20260101.up.sql", "", false, false},
		{"20260101_000000_x.sql", "", false, false},
		{"notes.txt", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.name)
			if version != tt.wantVersion || isUp != tt.wantUp || ok != tt.wantOK {
				t.Errorf("parseMigrationFilename() = %q, %v, %v, want %q, %v, %v",
					version, isUp, ok, tt.wantVersion, tt.wantUp, tt.wantOK)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260101_000000_state_history.up.sql", "state_history"},
		{"20260101_000000_state_history.down.sql", "state_history"},
		{"20260101_000000.up.sql", "20260101_000000"},
	}
	for _, tt := range tests {
		if got := extractMigrationName(tt.filename); got != tt.want {
			t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
