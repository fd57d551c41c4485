// Package dbtest opens throwaway SQLite databases migrated with the
// production migrations.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/config"
	"github.com/templui/skillfolio/internal/db"
)

// Config returns a sqlite database config rooted in a fresh temp directory.
func Config(t testing.TB) config.Database {
	t.Helper()
	return config.Database{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	}
}

// New opens a migrated database that is closed when the test ends. A single
// connection keeps transactions and plain statements from contending for the
// file lock.
func New(t testing.TB) *sqlx.DB {
	t.Helper()
	cfg := Config(t)

	conn, err := db.Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	err = db.RunMigrations(conn.DB, cfg.Driver)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return conn
}
