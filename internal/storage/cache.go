package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCachedResponse returns a cached AI response stored under key no more
// than maxAge ago. The second return value is false on a miss.
func (s *Store) GetCachedResponse(ctx context.Context, key string, maxAge time.Duration) (string, bool, error) {
	var response string
	cutoff := formatTime(time.Now().Add(-maxAge))
	err := s.db.QueryRowContext(ctx,
		`SELECT response FROM ai_cache WHERE key = ? AND created_at >= ?`,
		key, cutoff,
	).Scan(&response)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading ai cache: %w", err)
	}
	return response, true, nil
}

// PutCachedResponse stores or replaces the cached response for key.
func (s *Store) PutCachedResponse(ctx context.Context, key, model, response string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_cache (key, response, model, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			response = excluded.response,
			model = excluded.model,
			created_at = excluded.created_at`,
		key, response, model, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("writing ai cache: %w", err)
	}
	return nil
}

// PurgeExpiredCache deletes cache entries older than maxAge and returns how
// many were removed.
func (s *Store) PurgeExpiredCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM ai_cache WHERE created_at < ?`,
		formatTime(time.Now().Add(-maxAge)),
	)
	if err != nil {
		return 0, fmt.Errorf("purging ai cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting purged cache rows: %w", err)
	}
	return n, nil
}
