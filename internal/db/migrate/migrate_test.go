package migrate

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "github.com/mattn/go-sqlite3"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// A single connection keeps one in-memory database across calls.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("close db: %v", err)
		}
	})
	return db
}

func TestRun_AppliesEmbeddedOnce(t *testing.T) {
	ctx := context.Background()
	db := openMemory(t)

	n, err := Run(ctx, db)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n < 1 {
		t.Fatalf("Run() applied %d migrations, want at least 1", n)
	}

	if _, err := db.Exec(`INSERT INTO entries (id, title, source, data) VALUES ('a', 'A', 'api', '{}')`); err != nil {
		t.Fatalf("entries table unusable: %v", err)
	}

	n, err = Run(ctx, db)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if n != 0 {
		t.Errorf("second Run() applied %d migrations, want 0", n)
	}
}

func TestRun_OrderAndFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("applies in version order and skips other files", func(t *testing.T) {
		db := openMemory(t)
		fsys := fstest.MapFS{
			"sql/0002_add.sql":  {Data: []byte(`ALTER TABLE t ADD COLUMN b TEXT;`)},
			"sql/0001_init.sql": {Data: []byte(`CREATE TABLE t (a TEXT);`)},
			"sql/README.md":     {Data: []byte(`not a migration`)},
		}
		n, err := run(ctx, db, fsys)
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
		if n != 2 {
			t.Errorf("run() applied %d, want 2", n)
		}
		if _, err := db.Exec(`INSERT INTO t (a, b) VALUES ('x', 'y')`); err != nil {
			t.Errorf("schema not migrated: %v", err)
		}
	})

	t.Run("failed migration is not recorded", func(t *testing.T) {
		db := openMemory(t)
		fsys := fstest.MapFS{
			"sql/0001_broken.sql": {Data: []byte(`CREATE TABLE (;`)},
		}
		if _, err := run(ctx, db, fsys); err == nil {
			t.Fatal("run() error = nil, want non-nil")
		}
		var count int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if count != 0 {
			t.Errorf("recorded %d migrations, want 0", count)
		}
	})
}
