package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SpendDay formats t as the UTC day key used by the spend ledger.
func SpendDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ReserveSpend records amount against day if the day's running total plus
// amount stays within limit. The check and the insert share a transaction,
// so concurrent reservations cannot overshoot. A limit <= 0 disables the
// check. It returns whether the reservation was accepted and the total
// spent before it.
func (s *Store) ReserveSpend(ctx context.Context, day, kind string, amount, limit float64) (bool, float64, error) {
	var (
		spent    float64
		accepted bool
	)
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM spend_ledger WHERE day = ?`, day,
		).Scan(&spent); err != nil {
			return fmt.Errorf("summing spend for %s: %w", day, err)
		}
		if limit > 0 && spent+amount > limit {
			return nil
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO spend_ledger (day, kind, amount, created_at) VALUES (?, ?, ?, ?)`,
			day, kind, amount, formatTime(time.Now()),
		); err != nil {
			return fmt.Errorf("recording spend: %w", err)
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, spent, err
	}
	return accepted, spent, nil
}

// SpendSummary is the spend recorded for one day, split by kind.
type SpendSummary struct {
	Day    string             `json:"day"`
	Total  float64            `json:"total"`
	ByKind map[string]float64 `json:"by_kind"`
}

// SpentOn returns the spend recorded for day.
func (s *Store) SpentOn(ctx context.Context, day string) (*SpendSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, SUM(amount) FROM spend_ledger WHERE day = ? GROUP BY kind ORDER BY kind`, day,
	)
	if err != nil {
		return nil, fmt.Errorf("querying spend for %s: %w", day, err)
	}
	defer rows.Close()

	summary := &SpendSummary{Day: day, ByKind: map[string]float64{}}
	for rows.Next() {
		var (
			kind   string
			amount float64
		)
		if err := rows.Scan(&kind, &amount); err != nil {
			return nil, fmt.Errorf("scanning spend row: %w", err)
		}
		summary.ByKind[kind] = amount
		summary.Total += amount
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spend rows: %w", err)
	}
	return summary, nil
}
