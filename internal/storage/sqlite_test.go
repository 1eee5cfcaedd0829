package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

// newTestDB creates an in-memory SQLite database with migrations applied.
// The database is automatically closed when the test completes.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return db
}

// newTestStore creates an in-memory Store with migrations applied.
// The store is automatically closed when the test completes.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db := newTestDB(t)
	return NewStore(db)
}

func TestOpenDatabase_CreatesDirectoryAndFile(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "deep", "quill.db")

	db, err := OpenDatabase(dbPath)
	if err != nil {
		t.Fatalf("OpenDatabase(%q) error: %v", dbPath, err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not created at %q: %v", dbPath, err)
	}
}

func TestRunMigrations_AppliesSchema(t *testing.T) {
	store := newTestStore(t)
	db := store.DB()

	for _, table := range []string{"blogs", "runs", "config_documents", "ai_cache", "spend_ledger"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
	for _, idx := range []string{"idx_blogs_active", "idx_runs_blog", "idx_runs_status", "idx_ai_cache_created", "idx_spend_day"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name)
		if err != nil {
			t.Errorf("index %q not found: %v", idx, err)
		}
	}

	// A second run applies nothing.
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations error: %v", err)
	}
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 migration records, got %d", count)
	}

	v, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 2 {
		t.Errorf("SchemaVersion = %d, want 2", v)
	}
}

func TestLoadMigrations(t *testing.T) {
	tests := []struct {
		name    string
		files   fstest.MapFS
		want    []string
		wantErr string
	}{
		{
			name: "sorted by version",
			files: fstest.MapFS{
				"migrations/010_later.sql":  {Data: []byte("SELECT 1;")},
				"migrations/002_second.sql": {Data: []byte("SELECT 1;")},
				"migrations/README.md":      {Data: []byte("notes")},
			},
			want: []string{"002_second.sql", "010_later.sql"},
		},
		{
			name: "duplicate version",
			files: fstest.MapFS{
				"migrations/001_a.sql":  {Data: []byte("SELECT 1;")},
				"migrations/0001_b.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "share version 1",
		},
		{
			name: "missing prefix",
			files: fstest.MapFS{
				"migrations/initial.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "positive version number",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := loadMigrations(tt.files)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("loadMigrations: %v", err)
			}
			var names []string
			for _, m := range got {
				names = append(names, m.name)
			}
			if strings.Join(names, ",") != strings.Join(tt.want, ",") {
				t.Errorf("order = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestRunMigrations_FailedMigrationRollsBack(t *testing.T) {
	db, err := OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("OpenDatabase error: %v", err)
	}
	defer db.Close()

	fsys := fstest.MapFS{
		"migrations/001_ok.sql":     {Data: []byte("CREATE TABLE kept (id INTEGER);")},
		"migrations/002_broken.sql": {Data: []byte("CREATE TABLE dropped (id INTEGER); INSERT INTO nowhere VALUES (1);")},
	}
	ctx := context.Background()
	if err := runMigrations(ctx, db, fsys); err == nil || !strings.Contains(err.Error(), "002_broken.sql") {
		t.Fatalf("err = %v, want failure naming the broken migration", err)
	}

	v, err := schemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != 1 {
		t.Errorf("schema version = %d, want 1", v)
	}
	var name string
	err = db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='dropped'").Scan(&name)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("table from the failed migration exists (err = %v)", err)
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string // expected in "2006-01-02 15:04:05" format, or "zero"
	}{
		{
			name:  "sqlite format",
			input: "2025-01-15 10:30:00",
			want:  "2025-01-15 10:30:00",
		},
		{
			name:  "RFC3339",
			input: "2025-01-15T10:30:00Z",
			want:  "2025-01-15 10:30:00",
		},
		{
			name:  "round trip through formatTime",
			input: formatTime(time.Date(2025, 1, 15, 10, 30, 0, 0, time.FixedZone("x", 3600))),
			want:  "2025-01-15 09:30:00",
		},
		{
			name:  "invalid",
			input: "not-a-date",
			want:  "zero",
		},
		{
			name:  "empty",
			input: "",
			want:  "zero",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseTime(tt.input)
			if tt.want == "zero" {
				if !got.IsZero() {
					t.Errorf("parseTime(%q) = %v, want zero time", tt.input, got)
				}
				return
			}
			gotStr := got.Format("2006-01-02 15:04:05")
			if gotStr != tt.want {
				t.Errorf("parseTime(%q) = %q, want %q", tt.input, gotStr, tt.want)
			}
		})
	}
}

func TestParseTimePtr(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		got := parseTimePtr(nil)
		if got != nil {
			t.Errorf("parseTimePtr(nil) = %v, want nil", got)
		}
	})

	t.Run("empty string", func(t *testing.T) {
		s := ""
		got := parseTimePtr(&s)
		if got != nil {
			t.Errorf("parseTimePtr(&\"\") = %v, want nil", got)
		}
	})

	t.Run("valid time", func(t *testing.T) {
		s := "2025-01-15 10:30:00"
		got := parseTimePtr(&s)
		if got == nil {
			t.Fatal("parseTimePtr returned nil for valid input")
		}
		want := "2025-01-15 10:30:00"
		gotStr := got.Format("2006-01-02 15:04:05")
		if gotStr != want {
			t.Errorf("parseTimePtr(%q) = %q, want %q", s, gotStr, want)
		}
	})
}
