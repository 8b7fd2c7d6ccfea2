package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"SignalSentinel/internal/model"

	_ "modernc.org/sqlite"
)

var (
	ErrDuplicateTicker = errors.New("ticker already in watchlist")
	ErrTickerNotFound  = errors.New("ticker not in watchlist")
	ErrMissingConfig   = errors.New("config key not set")
)

// Store persists bars, watchlist, config and signal history to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: every write is serialized by the driver pool.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("sqlite store opened", "path", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_bars (
			ticker     TEXT    NOT NULL,
			date       TEXT    NOT NULL,
			open       REAL,
			high       REAL,
			low        REAL,
			close      REAL,
			volume     REAL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (ticker, date)
		)`,

		`CREATE TABLE IF NOT EXISTS watchlist (
			ticker   TEXT PRIMARY KEY,
			name     TEXT,
			added_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS config (
			key        TEXT PRIMARY KEY,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS signal_history (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			ticker      TEXT    NOT NULL,
			signal_type TEXT    NOT NULL,
			price       REAL,
			rpp_score   REAL,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signal_ticker_ts ON signal_history(ticker, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Seed inserts default config values and watchlist entries without overwriting existing rows.
func (s *Store) Seed(ctx context.Context, config map[string]string, watchlist []model.WatchlistEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	now := nowMillis()
	for key, value := range config {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO config (key, value, updated_at) VALUES (?, ?, ?)`,
			key, value, now); err != nil {
			return fmt.Errorf("seed config %s: %w", key, err)
		}
	}
	for _, e := range watchlist {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO watchlist (ticker, name, added_at) VALUES (?, ?, ?)`,
			model.NormalizeTicker(e.Ticker), nullString(e.Name), now); err != nil {
			return fmt.Errorf("seed watchlist %s: %w", e.Ticker, err)
		}
	}
	return tx.Commit()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	slog.Info("closing sqlite store")
	return s.db.Close()
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}
