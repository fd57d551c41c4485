package db

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/templui/skillfolio/internal/config"
	_ "modernc.org/sqlite"
)

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg config.Database) (*sqlx.DB, error) {
	// SQLite: create data directory if needed
	if cfg.Driver == "sqlite" {
		dir := filepath.Dir(cfg.Path)
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connected", "driver", cfg.Driver)
	return db, nil
}

// Provider hands out the process-wide connection pool. The pool is opened on
// the first call to Conn; every later call, concurrent or not, gets the same
// handle or the same error.
type Provider struct {
	cfg  config.Database
	once sync.Once
	db   *sqlx.DB
	err  error
}

func NewProvider(cfg config.Database) *Provider {
	return &Provider{cfg: cfg}
}

func (p *Provider) Conn(ctx context.Context) (*sqlx.DB, error) {
	p.once.Do(func() {
		p.db, p.err = Open(ctx, p.cfg)
	})
	return p.db, p.err
}

// Close closes the pool if it was opened.
func (p *Provider) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
