package sqlitemigrate

import (
	"context"
	"database/sql"
	"reflect"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.TempDir()+"/migrate.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyRunsPendingInOrder(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{
		"migrations/002_index.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE INDEX idx_runs_setting ON runs(setting);\n-- +migrate Down\nDROP INDEX idx_runs_setting;"),
		},
		"migrations/001_runs.sql": &fstest.MapFile{
			Data: []byte("-- +migrate Up\nCREATE TABLE runs(id TEXT PRIMARY KEY, setting INTEGER NOT NULL);"),
		},
		"migrations/README.md": &fstest.MapFile{Data: []byte("ignored")},
	}

	applied, err := Apply(context.Background(), db, migrations, "migrations")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := []string{"001_runs.sql", "002_index.sql"}
	if !reflect.DeepEqual(applied, want) {
		t.Fatalf("applied = %v, want %v", applied, want)
	}

	again, err := Apply(context.Background(), db, migrations, "migrations")
	if err != nil {
		t.Fatalf("reapply: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("reapply applied %v, want none", again)
	}

	recorded, err := Applied(context.Background(), db)
	if err != nil {
		t.Fatalf("applied: %v", err)
	}
	if !reflect.DeepEqual(recorded, want) {
		t.Fatalf("recorded = %v, want %v", recorded, want)
	}
}

func TestApplyRollsBackFailedMigration(t *testing.T) {
	db := openDB(t)
	migrations := fstest.MapFS{
		"001_bad.sql": &fstest.MapFile{Data: []byte("-- +migrate Up\nCREATE TABLE ok(id INTEGER);\nNOT VALID SQL;")},
	}
	if _, err := Apply(context.Background(), db, migrations, ""); err == nil {
		t.Fatal("expected error")
	}
	recorded, err := Applied(context.Background(), db)
	if err != nil {
		t.Fatalf("applied: %v", err)
	}
	if len(recorded) != 0 {
		t.Fatalf("recorded = %v, want none", recorded)
	}
}

func TestApplyRequiresDB(t *testing.T) {
	if _, err := Apply(context.Background(), nil, fstest.MapFS{}, ""); err == nil {
		t.Fatal("expected error for nil db")
	}
}

func TestUpSection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CREATE TABLE a(x);", "CREATE TABLE a(x);"},
		{"-- +migrate Up\nCREATE TABLE a(x);", "\nCREATE TABLE a(x);"},
		{"-- +migrate Up\nCREATE TABLE a(x);\n-- +migrate Down\nDROP TABLE a;", "\nCREATE TABLE a(x);\n"},
	}
	for _, tt := range tests {
		if got := UpSection(tt.in); got != tt.want {
			t.Fatalf("UpSection(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
