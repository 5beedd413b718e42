package migrate

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUpUsesEmbeddedDir(t *testing.T) {
	db := newDB(t)
	orig := gooseUp
	defer func() { gooseUp = orig }()

	var gotDir string
	gooseUp = func(ctx context.Context, _ *sql.DB, dir string) error {
		gotDir = dir
		return nil
	}
	if err := NewManager(db).Up(context.Background()); err != nil {
		t.Fatalf("Up: %v", err)
	}
	if gotDir != migrationsDir {
		t.Fatalf("dir = %q", gotDir)
	}
}

func TestUpPropagatesError(t *testing.T) {
	db := newDB(t)
	orig := gooseUp
	defer func() { gooseUp = orig }()
	gooseUp = func(context.Context, *sql.DB, string) error { return errors.New("boom") }

	if err := NewManager(db).Up(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestVersion(t *testing.T) {
	db := newDB(t)
	orig := gooseVersion
	defer func() { gooseVersion = orig }()
	gooseVersion = func(context.Context, *sql.DB) (int64, error) { return 1, nil }

	v, err := NewManager(db).Version(context.Background())
	if err != nil || v != 1 {
		t.Fatalf("Version = %d, %v", v, err)
	}
}

func TestNilDB(t *testing.T) {
	if err := NewManager(nil).Up(context.Background()); err == nil {
		t.Fatal("expected error without database")
	}
}

func TestEmbeddedSchema(t *testing.T) {
	raw, err := fs.ReadFile(migrations, "sql/00001_init.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	sql := string(raw)
	for _, want := range []string{
		"-- +goose Up",
		"-- +goose Down",
		"project_identifier text not null unique",
		"check (license_status in ('NOT_PAID', 'PARTIALLY_PAID', 'FULLY_PAID'))",
		"before update on projects",
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("migration missing %q", want)
		}
	}
}
