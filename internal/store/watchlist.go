package store

import (
	"context"
	"database/sql"
	"fmt"

	"SignalSentinel/internal/model"
)

// Watchlist returns all entries ordered by ticker.
func (s *Store) Watchlist(ctx context.Context) ([]model.WatchlistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, name FROM watchlist ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var entries []model.WatchlistEntry
	for rows.Next() {
		var (
			e    model.WatchlistEntry
			name sql.NullString
		)
		if err := rows.Scan(&e.Ticker, &name); err != nil {
			return nil, fmt.Errorf("scan watchlist: %w", err)
		}
		e.Name = name.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddToWatchlist inserts a new entry. An existing ticker is left untouched and ErrDuplicateTicker returned.
func (s *Store) AddToWatchlist(ctx context.Context, entry model.WatchlistEntry) error {
	ticker := model.NormalizeTicker(entry.Ticker)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO watchlist (ticker, name, added_at) VALUES (?, ?, ?) ON CONFLICT (ticker) DO NOTHING`,
		ticker, nullString(entry.Name), nowMillis())
	if err != nil {
		return fmt.Errorf("insert watchlist %s: %w", ticker, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert watchlist %s: %w", ticker, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", ticker, ErrDuplicateTicker)
	}
	return nil
}

// RemoveFromWatchlist deletes an entry, returning ErrTickerNotFound when absent.
func (s *Store) RemoveFromWatchlist(ctx context.Context, ticker string) error {
	ticker = model.NormalizeTicker(ticker)
	res, err := s.db.ExecContext(ctx, `DELETE FROM watchlist WHERE ticker = ?`, ticker)
	if err != nil {
		return fmt.Errorf("delete watchlist %s: %w", ticker, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete watchlist %s: %w", ticker, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", ticker, ErrTickerNotFound)
	}
	return nil
}
