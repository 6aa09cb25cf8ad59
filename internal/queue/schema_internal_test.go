package queue

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if _, err := store.db.ExecContext(context.Background(), "UPDATE schema_version SET version = ?", schemaVersion+1); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = store.Close()

	if _, err := OpenPath(path); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestOpenAppliesPendingMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.db")
	store, err := OpenPath(path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	_ = store.Close()

	saved, savedVersion := migrations, schemaVersion
	t.Cleanup(func() { migrations, schemaVersion = saved, savedVersion })
	migrations = append(append([]string(nil), saved...), "ALTER TABLE jobs ADD COLUMN note TEXT")
	schemaVersion = 1 + len(migrations)

	store, err = OpenPath(path)
	if err != nil {
		t.Fatalf("reopen with migration: %v", err)
	}
	defer store.Close()
	version, err := store.currentVersion(context.Background())
	if err != nil || version != schemaVersion {
		t.Fatalf("version = %d (%v), want %d", version, err, schemaVersion)
	}
	if _, err := store.db.ExecContext(context.Background(), "UPDATE jobs SET note = 'x'"); err != nil {
		t.Fatalf("migrated column missing: %v", err)
	}
}
