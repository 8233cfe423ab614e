package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// intPtr returns a pointer to the given int.
func intPtr(i int) *int {
	return &i
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "listenordnung.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	db.Close()

	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != len(migrations) {
		t.Errorf("applied %d migrations, want %d", n, len(migrations))
	}
}

func TestSettingsKV(t *testing.T) {
	db := testDB(t)
	kv := &DBStore{DB: db}

	v, err := kv.LoadSetting("grouping_enabled", "true")
	if err != nil {
		t.Fatalf("LoadSetting default: %v", err)
	}
	if v != "true" {
		t.Errorf("default = %q, want true", v)
	}

	if err := kv.SaveSetting("grouping_enabled", "false"); err != nil {
		t.Fatalf("SaveSetting: %v", err)
	}
	// Upsert, not insert.
	if err := kv.SaveSetting("grouping_enabled", "true"); err != nil {
		t.Fatalf("SaveSetting again: %v", err)
	}

	v, err = kv.LoadSetting("grouping_enabled", "false")
	if err != nil {
		t.Fatalf("LoadSetting: %v", err)
	}
	if v != "true" {
		t.Errorf("loaded %q, want true", v)
	}
}

func TestMemStore(t *testing.T) {
	kv := NewMemStore()

	v, err := kv.LoadSetting("k", "def")
	if err != nil || v != "def" {
		t.Fatalf("LoadSetting = %q, %v; want def", v, err)
	}

	if err := kv.SaveSetting("k", "v1"); err != nil {
		t.Fatal(err)
	}
	v, _ = kv.LoadSetting("k", "def")
	if v != "v1" {
		t.Errorf("loaded %q, want v1", v)
	}
}
