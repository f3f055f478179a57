// Package history persists room-scoped chat, shared-file, and
// recording-consent history so a transient reconnect (spec.md §4.1)
// rehydrates locally without re-querying the SFU. It follows the
// teacher's embedded-migration sqlite package shape (internal/db/sqlite.go):
// a single *sql.DB wrapped in a type, goose migrations embedded via
// embed.FS and applied on Open.
package history

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the history database connection.
type Store struct {
	*sql.DB
}

// Open creates path's parent directory if needed, opens the sqlite
// database, and applies pending goose migrations.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pinging history database: %w", err)
	}

	s := &Store{DB: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("running history migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.Up(s.DB, "migrations"); err != nil {
		return fmt.Errorf("applying goose migrations: %w", err)
	}
	return nil
}
