package migrations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/config"
	"github.com/nerrad567/smarthome-bridge/internal/infrastructure/database"
)

func TestEmbeddedMigrationsApply(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "m.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // test cleanup

	ctx := context.Background()
	n, err := db.Migrate(ctx, FS)
	if err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if n == 0 {
		t.Fatal("no embedded migrations applied")
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO state_history (device_id, state) VALUES ('1', '{}')"); err != nil {
		t.Errorf("insert into state_history: %v", err)
	}

	for range n {
		if err := db.MigrateDown(ctx, FS); err != nil {
			t.Fatalf("MigrateDown() error = %v", err)
		}
	}
}
