// Package storage persists the job history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spherical/ghostview/internal/config"
)

// Common errors
var (
	ErrNotFound = errors.New("record not found")
)

// DB represents a database connection interface.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

var schemas = map[string]string{
	DriverSQLite: `
		CREATE TABLE IF NOT EXISTS job_history (
			id            TEXT PRIMARY KEY,
			job_id        TEXT NOT NULL,
			task          TEXT NOT NULL,
			status        TEXT NOT NULL,
			error_type    TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			return_code   INTEGER NOT NULL DEFAULT 0,
			input_file    TEXT NOT NULL DEFAULT '',
			output_file   TEXT NOT NULL DEFAULT '',
			num_pages     INTEGER NOT NULL DEFAULT 0,
			duration_ms   INTEGER NOT NULL DEFAULT 0,
			finished_at   TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_job_history_finished ON job_history (finished_at);
	`,
	DriverPostgres: `
		CREATE TABLE IF NOT EXISTS job_history (
			id            UUID PRIMARY KEY,
			job_id        TEXT NOT NULL,
			task          TEXT NOT NULL,
			status        TEXT NOT NULL,
			error_type    TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			return_code   INTEGER NOT NULL DEFAULT 0,
			input_file    TEXT NOT NULL DEFAULT '',
			output_file   TEXT NOT NULL DEFAULT '',
			num_pages     INTEGER NOT NULL DEFAULT 0,
			duration_ms   BIGINT NOT NULL DEFAULT 0,
			finished_at   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_job_history_finished ON job_history (finished_at);
	`,
}

// Store is an open history database.
type Store struct {
	DB     *sql.DB
	Driver string
}

// Open connects to the database and creates the schema.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}

	return &Store{DB: db, Driver: driver}, nil
}

// OpenConfig opens the store selected by cfg. It returns nil when history is
// disabled.
func OpenConfig(ctx context.Context, cfg config.HistoryConfig) (*Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		s, err := Open(ctx, DriverSQLite, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		if cfg.SQLite.MaxOpenConns > 0 {
			s.DB.SetMaxOpenConns(cfg.SQLite.MaxOpenConns)
		}
		return s, nil
	case "postgres":
		s, err := Open(ctx, DriverPostgres, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		if cfg.Postgres.MaxOpenConns > 0 {
			s.DB.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		}
		if cfg.Postgres.ConnMaxLifetime > 0 {
			s.DB.SetConnMaxLifetime(cfg.Postgres.ConnMaxLifetime)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unsupported history driver %q", cfg.Driver)
}

// History returns the job history repository backed by the store.
func (s *Store) History() *HistoryRepository {
	return NewHistoryRepository(s.DB)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// ms converts a duration for the duration_ms column.
func ms(d time.Duration) int64 {
	return d.Milliseconds()
}
