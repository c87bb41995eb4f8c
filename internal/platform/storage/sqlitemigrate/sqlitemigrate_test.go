package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func migrationFS(name, upSQL string) fstest.MapFS {
	return fstest.MapFS{
		name: &fstest.MapFile{Data: []byte("-- +migrate Up\n" + upSQL)},
	}
}

func TestApplyMigrationsRecordsApplied(t *testing.T) {
	db := openTestDB(t)

	fsys := migrationFS("0001_sessions.sql", "CREATE TABLE sessions(id TEXT PRIMARY KEY);")
	if err := ApplyMigrations(db, fsys, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	if got := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Fatalf("ledger rows = %d, want 1", got)
	}
	if !tableExists(t, db, "sessions") {
		t.Fatal("migrated table missing")
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	fsys := migrationFS("0001_sessions.sql", "CREATE TABLE sessions(id TEXT PRIMARY KEY);")
	if err := ApplyMigrations(db, fsys, ""); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	if err := ApplyMigrations(db, fsys, ""); err != nil {
		t.Fatalf("re-apply migrations: %v", err)
	}

	if got := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Fatalf("ledger rows after replay = %d, want 1", got)
	}
}

func TestApplyMigrationsDoesNotRecordFailure(t *testing.T) {
	db := openTestDB(t)

	broken := migrationFS("0001_rounds.sql", "CREAT table rounds(id INT);")
	if err := ApplyMigrations(db, broken, ""); err == nil {
		t.Fatal("expected broken migration to fail")
	}
	if got := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 0 {
		t.Fatalf("ledger rows after failure = %d, want 0", got)
	}

	fixed := migrationFS("0001_rounds.sql", "CREATE TABLE rounds(id INTEGER PRIMARY KEY);")
	if err := ApplyMigrations(db, fixed, ""); err != nil {
		t.Fatalf("apply fixed migration: %v", err)
	}
	if got := countRows(t, db, "SELECT COUNT(*) FROM schema_migrations"); got != 1 {
		t.Fatalf("ledger rows after fix = %d, want 1", got)
	}
}

func TestApplyMigrationsKeysLedgerByRoot(t *testing.T) {
	db := openTestDB(t)

	fsys := fstest.MapFS{
		"arena/0001_steps.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE steps(id TEXT PRIMARY KEY);"),
		},
	}
	if err := ApplyMigrations(db, fsys, "arena"); err != nil {
		t.Fatalf("apply migrations with root: %v", err)
	}

	var key string
	if err := db.QueryRow("SELECT name FROM schema_migrations LIMIT 1").Scan(&key); err != nil {
		t.Fatalf("read ledger key: %v", err)
	}
	if key != "arena/0001_steps.sql" {
		t.Fatalf("ledger key = %q, want arena/0001_steps.sql", key)
	}
	if !tableExists(t, db, "steps") {
		t.Fatal("migrated table missing under root")
	}
}

func TestUpSectionStopsAtDownMarker(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a(id TEXT);\n-- +migrate Down\nDROP TABLE a;"
	up := upSection(content)
	if up != "\nCREATE TABLE a(id TEXT);\n" {
		t.Fatalf("up section = %q", up)
	}

	if got := upSection("CREATE TABLE b(id TEXT);"); got != "CREATE TABLE b(id TEXT);" {
		t.Fatalf("unmarked content = %q, want it returned verbatim", got)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func countRows(t *testing.T, db *sql.DB, query string) int64 {
	t.Helper()
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	return count
}

func tableExists(t *testing.T, db *sql.DB, tableName string) bool {
	t.Helper()
	var name string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", tableName).Scan(&name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false
		}
		t.Fatalf("check table exists: %v", err)
	}
	return name == tableName
}
