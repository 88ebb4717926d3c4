// Package database provides SQLite persistence for territorial state.
package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"warfront/internal/control"
)

// ErrStoreUnavailable marks a retryable store failure. Callers must retry on
// their existing schedule rather than treat it as fatal.
var ErrStoreUnavailable = errors.New("store unavailable")

// DB wraps the SQLite database connection.
type DB struct {
	conn      *sqlx.DB
	threshold int
	margin    int
}

// Options tune the control-resolution rule applied on influence writes.
type Options struct {
	ControlThreshold int
	ContestMargin    int
}

// New creates a new database connection.
// If the database file doesn't exist, it will be created.
func New(dbPath string, opts Options) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sqlx.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer: an influence action's decide-and-record unit must be
	// atomic relative to concurrent actions on the same territory.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opts.ControlThreshold == 0 {
		opts.ControlThreshold = control.DefaultThreshold
	}
	if opts.ContestMargin == 0 {
		opts.ContestMargin = control.DefaultContestMargin
	}

	db := &DB{
		conn:      conn,
		threshold: opts.ControlThreshold,
		margin:    opts.ContestMargin,
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// storeErr classifies a database error as retryable. Anything that is not a
// domain error (not-found and friends) is assumed to be a transient failure
// of the backing store.
func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// migrate runs all database migrations.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		applied, err := db.isMigrationApplied(m.id)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		if err := db.runMigration(m); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.id, m.name, err)
		}
	}

	return nil
}

func (db *DB) isMigrationApplied(id int) (bool, error) {
	var count int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM migrations WHERE id = ?", id).Scan(&count)
	return count > 0, err
}

func (db *DB) runMigration(m migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.sql); err != nil {
		return err
	}

	if _, err := tx.Exec("INSERT INTO migrations (id, name) VALUES (?, ?)", m.id, m.name); err != nil {
		return err
	}

	return tx.Commit()
}
