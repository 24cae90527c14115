package migrate_test

import (
	"context"
	"testing"

	"taskdeck/internal/db"
	"taskdeck/internal/migrate"
)

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if v, err := migrate.Version(ctx, conn); err == nil && v != 0 {
		t.Fatalf("fresh db version = %d", v)
	}
	for i := 0; i < 2; i++ {
		if err := migrate.Migrate(ctx, conn); err != nil {
			t.Fatalf("migrate pass %d: %v", i, err)
		}
	}
	latest, err := migrate.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	v, err := migrate.Version(ctx, conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != latest || latest < 2 {
		t.Fatalf("version = %d, latest = %d", v, latest)
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO todos(id,title,created_at,due_at) VALUES ('x','X','2024-01-01T00:00:00Z','2024-01-02T00:00:00Z')`); err != nil {
		t.Fatalf("todos table missing: %v", err)
	}
}
