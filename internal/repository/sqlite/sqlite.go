// Package sqlite provides a SQLite-backed implementation of repository.Store.
//
// The database runs in WAL mode with foreign keys enabled. The store keeps a
// single open connection and begins transactions IMMEDIATE, so writers are
// serialized and the ForUpdate queries need no explicit row locks.
//
// Use ":memory:" for an in-memory database (tests).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/colloil/colloil/internal/repository"
)

// timeFormat is how timestamps are stored. It sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db dbtx
}

// Store implements repository.Store using SQLite.
type Store struct {
	*queries
	db *sql.DB
}

var _ repository.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	if dbPath == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{queries: &queries{db: db}, db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ExecTx runs fn in a transaction.
// Only the Querier passed to fn may be used inside it.
func (s *Store) ExecTx(ctx context.Context, fn func(q repository.Querier) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(&queries{db: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id               TEXT PRIMARY KEY,
		email            TEXT NOT NULL UNIQUE,
		password_hash    TEXT NOT NULL,
		name             TEXT NOT NULL DEFAULT '',
		surname          TEXT NOT NULL DEFAULT '',
		phone            TEXT NOT NULL DEFAULT '',
		address          TEXT NOT NULL DEFAULT '',
		nickname         TEXT NOT NULL DEFAULT '',
		total_oil_ml     INTEGER NOT NULL DEFAULT 0 CHECK (total_oil_ml >= 0),
		created_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS coupons (
		id               TEXT PRIMARY KEY,
		user_id          TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		partner_name     TEXT NOT NULL,
		partner_logo     TEXT NOT NULL DEFAULT '',
		discount_percent INTEGER NOT NULL,
		required_ml      INTEGER NOT NULL,
		activated        INTEGER NOT NULL DEFAULT 0,
		code             TEXT UNIQUE,
		activated_at     TEXT,
		expires_at       TEXT,
		position         INTEGER NOT NULL DEFAULT 0,
		created_at       TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_coupons_user ON coupons (user_id, position);

	CREATE TABLE IF NOT EXISTS courier_requests (
		seq               INTEGER PRIMARY KEY AUTOINCREMENT,
		id                TEXT NOT NULL UNIQUE,
		user_id           TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		oil_ml            INTEGER NOT NULL,
		address           TEXT NOT NULL DEFAULT '',
		notes             TEXT NOT NULL DEFAULT '',
		status            TEXT NOT NULL DEFAULT 'pending',
		courier_name      TEXT NOT NULL,
		estimated_arrival TEXT NOT NULL,
		created_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_courier_requests_user_created ON courier_requests (user_id, created_at DESC, seq DESC);

	CREATE TABLE IF NOT EXISTS notifications (
		seq        INTEGER PRIMARY KEY AUTOINCREMENT,
		id         TEXT NOT NULL UNIQUE,
		user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		message    TEXT NOT NULL,
		read       INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at DESC, seq DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Liters are stored as integer milliliters so SQLite can do exact arithmetic.
func toMilliliters(liters decimal.Decimal) int64 {
	return liters.Shift(3).Round(0).IntPart()
}

func fromMilliliters(ml int64) decimal.Decimal {
	return decimal.New(ml, -3)
}
