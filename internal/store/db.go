// Package store provides SQLite persistence for collected data: source
// records, enrichment payloads, employee rows, search results, and the
// run-state records that make paginated collections resumable.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const (
	// defaultBusyTimeout bounds how long a write waits on the file lock.
	defaultBusyTimeout = 5 * time.Second
)

// Open opens (creating if necessary) the SQLite database at path.
// The parent directory is created when missing.
func Open(path string) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=%d", path, defaultBusyTimeout.Milliseconds())

	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// The collectors are strictly sequential; a single connection keeps
	// the single-writer assumption true by construction.
	db.SetMaxOpenConns(1)

	return db, nil
}

// OpenExisting opens the database at path, failing if the file does not
// exist. Used by commands that require a migrated store.
func OpenExisting(path string) (*sqlx.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s does not exist, run `prospector migrate` first", path)
	}
	return Open(path)
}
