package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// Open opens (or creates) the tool-call database described by cfg and
// migrates its schema. The returned Store owns the connection; call Close
// when done.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("sqlite: create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", cfg.Path, err)
	}

	// SQLite handles one writer at a time; limit pool to 1 connection so
	// PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlite: enable WAL: %w", err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: set busy_timeout: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: cfg.Path}, nil
}
