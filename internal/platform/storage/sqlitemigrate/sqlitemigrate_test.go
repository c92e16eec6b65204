package sqlitemigrate

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB
}

func TestApplyRunsMigrationsInOrder(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0002_add_column.sql": {Data: []byte("ALTER TABLE things ADD COLUMN label TEXT;")},
		"0001_create.sql":     {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
	}

	if err := Apply(context.Background(), sqlDB, migrations, "."); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO things (id, label) VALUES ('a', 'b')"); err != nil {
		t.Fatalf("expected both migrations applied, got %v", err)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0001_create.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
	}

	if err := Apply(context.Background(), sqlDB, migrations, "."); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	// CREATE TABLE without IF NOT EXISTS would fail if re-executed.
	if err := Apply(context.Background(), sqlDB, migrations, "."); err != nil {
		t.Fatalf("second apply: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 recorded migration, got %d", count)
	}
}

func TestApplySkipsEmptyAndNonSQLFiles(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0001_create.sql": {Data: []byte("CREATE TABLE things (id TEXT PRIMARY KEY);")},
		"0002_empty.sql":  {Data: []byte("   \n")},
		"README.md":       {Data: []byte("not sql")},
	}

	if err := Apply(context.Background(), sqlDB, migrations, "."); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	sqlDB := openDB(t)
	migrations := fstest.MapFS{
		"0001_bad.sql": {Data: []byte("CREATE BROKEN SYNTAX;")},
	}

	err := Apply(context.Background(), sqlDB, migrations, ".")
	if err == nil {
		t.Fatal("expected error for broken migration")
	}
	if !strings.Contains(err.Error(), "0001_bad.sql") {
		t.Fatalf("expected failing file named, got %v", err)
	}

	// The failed migration must not be recorded as applied.
	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no recorded migrations, got %d", count)
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if err := Apply(context.Background(), nil, fstest.MapFS{}, "."); err == nil {
		t.Fatal("expected error for nil db")
	}
}
