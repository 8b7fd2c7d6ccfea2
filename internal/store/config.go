package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetConfig returns the value stored under key, or ErrMissingConfig.
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", key, ErrMissingConfig)
	}
	if err != nil {
		return "", fmt.Errorf("query config %s: %w", key, err)
	}
	return value, nil
}

// SetConfig upserts a config value.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO config (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, nowMillis())
	if err != nil {
		return fmt.Errorf("upsert config %s: %w", key, err)
	}
	return nil
}
