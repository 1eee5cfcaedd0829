package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrBudgetExceeded is returned when a call would take the day's AI spend
// past the configured budget.
var ErrBudgetExceeded = errors.New("daily AI budget exceeded")

// BudgetGuard decides whether a paid AI call may proceed. An allowed call
// has its estimated cost reserved against the budget before returning.
type BudgetGuard interface {
	CheckAndReserve(ctx context.Context, kind string, estimatedCost float64) error
}

// SpendLedger records spend per UTC day.
type SpendLedger interface {
	ReserveSpend(ctx context.Context, day, kind string, amount, limit float64) (bool, float64, error)
}

// DailyBudgetGuard enforces a per-UTC-day spend limit backed by a ledger.
// A limit of zero disables enforcement but still records spend.
type DailyBudgetGuard struct {
	ledger SpendLedger
	limit  float64
	now    func() time.Time
}

// NewDailyBudgetGuard returns a guard over ledger with the given daily
// limit in USD.
func NewDailyBudgetGuard(ledger SpendLedger, limit float64) *DailyBudgetGuard {
	return &DailyBudgetGuard{ledger: ledger, limit: limit, now: time.Now}
}

// CheckAndReserve reserves estimatedCost for today or returns
// ErrBudgetExceeded.
func (g *DailyBudgetGuard) CheckAndReserve(ctx context.Context, kind string, estimatedCost float64) error {
	day := g.now().UTC().Format("2006-01-02")
	ok, spent, err := g.ledger.ReserveSpend(ctx, day, kind, estimatedCost, g.limit)
	if err != nil {
		return fmt.Errorf("reserving budget: %w", err)
	}
	if !ok {
		slog.Warn("AI budget exhausted", "day", day, "spent", spent, "requested", estimatedCost, "limit", g.limit)
		return fmt.Errorf("%w: spent $%.4f of $%.2f, call needs $%.4f", ErrBudgetExceeded, spent, g.limit, estimatedCost)
	}
	return nil
}

// NoBudget is a BudgetGuard that allows every call.
type NoBudget struct{}

// CheckAndReserve always succeeds.
func (NoBudget) CheckAndReserve(context.Context, string, float64) error { return nil }

// CostModel converts token and image counts into USD.
type CostModel struct {
	InputPer1K  float64
	OutputPer1K float64
	PerImage    float64
}

// EstimateCost approximates the cost of a completion before it is made,
// counting roughly four characters per input token and assuming the full
// maxTokens budget is used for output.
func (m CostModel) EstimateCost(prompt string, maxTokens int) float64 {
	inTokens := (len(prompt) + 3) / 4
	return float64(inTokens)/1000*m.InputPer1K + float64(maxTokens)/1000*m.OutputPer1K
}
