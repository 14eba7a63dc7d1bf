package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/decisions/internal/retry"
	"github.com/ashureev/decisions/internal/shared"
	_ "modernc.org/sqlite"
)

// busyRetry handles SQLITE_BUSY when several CLI processes share one file.
var busyRetry = retry.Options{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	MaxDelay:     200 * time.Millisecond,
	ShouldRetry:  shared.IsSQLiteConflictError,
}

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode so concurrent CLI invocations do not block each other.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Settings traffic is tiny; one connection avoids writer contention inside the process.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetSetting returns the value stored under key.
func (s *SQLiteStore) GetSetting(ctx context.Context, key string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key)

	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scan setting %q: %w", key, err)
	}
	return value, nil
}

// PutSetting creates or replaces the value stored under key.
func (s *SQLiteStore) PutSetting(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO settings (key, value, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`

	return s.exec(ctx, "put setting", query, key, value, time.Now().Unix())
}

// PutSettingIfAbsent stores value unless key already has one, then returns the stored value.
func (s *SQLiteStore) PutSettingIfAbsent(ctx context.Context, key, value string) (string, error) {
	query := `INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO NOTHING`
	if err := s.exec(ctx, "put setting if absent", query, key, value, time.Now().Unix()); err != nil {
		return "", err
	}
	return s.GetSetting(ctx, key)
}

// DeleteSetting removes key.
func (s *SQLiteStore) DeleteSetting(ctx context.Context, key string) error {
	return s.exec(ctx, "delete setting", `DELETE FROM settings WHERE key = ?`, key)
}

func (s *SQLiteStore) exec(ctx context.Context, op, query string, args ...any) error {
	opts := busyRetry
	opts.OnRetry = func(attempt int, err error, delay time.Duration) {
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", attempt, "delay", delay, "error", err)
	}
	_, err := retry.Do(ctx, opts, func(ctx context.Context) (sql.Result, error) {
		return s.db.ExecContext(ctx, query, args...)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
