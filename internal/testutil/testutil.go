// Package testutil provides shared test helpers for setting up source
// directories, databases and the rendering pipeline.
package testutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/ticker/internal/annotate"
	"github.com/starford/ticker/internal/reference"
	"github.com/starford/ticker/internal/storage"
	"github.com/starford/ticker/internal/store"
)

// Location is the zone the test pipelines use for calendar dates.
var Location = time.FixedZone("CEST", 2*60*60)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *store.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ticker-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := store.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSources creates a temporary source directory with a storage provider.
func TestSources(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	src, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return src.Root(), src
}

// WriteSource writes a source document below dir.
func WriteSource(t *testing.T, dir, rel, content string) {
	t.Helper()
	abs := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Logger returns a logger that only reports errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Engine builds the rendering pipeline over db with the overview at
// /newsticker/ and media under /media.
func Engine(db *store.DB) (*annotate.Engine, *reference.Resolver) {
	res := reference.NewResolver(db, "/newsticker/", "/media", Location)
	return annotate.NewEngine(db, res, Logger()), res
}
