package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalSentinel/internal/model"
)

// UpsertBars writes every bar keyed by (ticker, date), replacing rows for dates already cached.
func (s *Store) UpsertBars(ctx context.Context, ticker string, bars []model.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert bars: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock_bars
		(ticker, date, open, high, low, close, volume, updated_at)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (ticker, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare upsert bars: %w", err)
	}
	defer stmt.Close()

	now := nowMillis()
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, ticker, b.DateKey(), b.Open, b.High, b.Low, b.Close, b.Volume, now); err != nil {
			return fmt.Errorf("upsert bar %s %s: %w", ticker, b.DateKey(), err)
		}
	}
	return tx.Commit()
}

// LatestBarDate returns the most recent cached date for ticker. ok is false when nothing is cached.
func (s *Store) LatestBarDate(ctx context.Context, ticker string) (date time.Time, ok bool, err error) {
	var last sql.NullString
	if err := s.db.QueryRowContext(ctx,
		`SELECT MAX(date) FROM stock_bars WHERE ticker = ?`, ticker).Scan(&last); err != nil {
		return time.Time{}, false, fmt.Errorf("query latest bar date: %w", err)
	}
	if !last.Valid {
		return time.Time{}, false, nil
	}
	date, err = time.Parse(model.DateLayout, last.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse bar date %q: %w", last.String, err)
	}
	return date, true, nil
}

// BarsSince returns cached bars dated on or after since, ascending by date.
func (s *Store) BarsSince(ctx context.Context, ticker string, since time.Time) ([]model.Bar, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT date, open, high, low, close, volume
		FROM stock_bars
		WHERE ticker = ? AND date >= ?
		ORDER BY date`, ticker, since.UTC().Format(model.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var (
			date string
			b    model.Bar
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if b.Date, err = time.Parse(model.DateLayout, date); err != nil {
			return nil, fmt.Errorf("parse bar date %q: %w", date, err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
