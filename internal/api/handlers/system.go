package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hoanghai1803/quill/internal/storage"
)

// Health handles GET /api/health. It reports 503 when the database does
// not answer.
func Health(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version, err := store.SchemaVersion(r.Context())
		if err != nil {
			slog.Warn("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "schema_version": version})
	}
}

// SpendToday handles GET /api/spend/today: the AI spend reserved so far in
// the current UTC day against the configured budget (0 means unlimited).
func SpendToday(store *storage.Store, dailyBudget float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := store.SpentOn(r.Context(), storage.SpendDay(time.Now()))
		if err != nil {
			writeStoreError(w, err, "Failed to get spend")
			return
		}

		resp := struct {
			*storage.SpendSummary
			Budget    float64  `json:"budget"`
			Remaining *float64 `json:"remaining,omitempty"`
		}{SpendSummary: summary, Budget: dailyBudget}
		if dailyBudget > 0 {
			remaining := max(dailyBudget-summary.Total, 0)
			resp.Remaining = &remaining
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
