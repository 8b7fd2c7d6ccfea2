package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"SignalSentinel/internal/model"
)

// AppendSignal adds a record to the signal history. rec.ID is set from the inserted row.
func (s *Store) AppendSignal(ctx context.Context, rec *model.SignalRecord) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO signal_history
		(ticker, signal_type, price, rpp_score, created_at)
		VALUES (?,?,?,?,?)`,
		rec.Ticker, string(rec.Kind), rec.Price, rec.RPPScore, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert signal %s: %w", rec.Ticker, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// LastSignal returns the most recent record for ticker, or nil when none exists.
func (s *Store) LastSignal(ctx context.Context, ticker string) (*model.SignalRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, ticker, signal_type, price, rpp_score, created_at
		FROM signal_history
		WHERE ticker = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, ticker)
	rec, err := scanSignal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query last signal %s: %w", ticker, err)
	}
	return rec, nil
}

// SignalsSince returns records created at or after since, newest first. limit <= 0 means no limit.
func (s *Store) SignalsSince(ctx context.Context, since time.Time, limit int) ([]model.SignalRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id, ticker, signal_type, price, rpp_score, created_at
		FROM signal_history
		WHERE created_at >= ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, since.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query signal history: %w", err)
	}
	defer rows.Close()

	var records []model.SignalRecord
	for rows.Next() {
		rec, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSignal(sc scanner) (*model.SignalRecord, error) {
	var (
		rec     model.SignalRecord
		kind    string
		created int64
	)
	if err := sc.Scan(&rec.ID, &rec.Ticker, &kind, &rec.Price, &rec.RPPScore, &created); err != nil {
		return nil, err
	}
	rec.Kind = model.SignalKind(kind)
	rec.CreatedAt = time.UnixMilli(created)
	return &rec, nil
}
