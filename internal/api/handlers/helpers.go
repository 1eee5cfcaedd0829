package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/quill/internal/models"
	"github.com/hoanghai1803/quill/internal/pipeline"
	"github.com/hoanghai1803/quill/internal/storage"
	"github.com/hoanghai1803/quill/internal/wordpress"
)

const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON and writes it to the response with the given
// HTTP status code. Content-Type is always set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// At this point headers are already sent; log but cannot change status.
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response with the given HTTP status code.
// The response body is {"error": "message"}.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeStoreError maps storage and validation errors to HTTP statuses.
// Anything unrecognised is logged and reported as a 500 with fallback as
// the message.
func writeStoreError(w http.ResponseWriter, err error, fallback string) {
	var stageErr *pipeline.StageError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, models.ErrInvalidBlog),
		errors.Is(err, storage.ErrInvalidConfigName):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrInvalidJSON):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, storage.ErrInvalidTransition),
		errors.Is(err, wordpress.ErrNotConnected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &stageErr):
		writeError(w, http.StatusBadGateway, stageErr.Error())
	default:
		slog.Error(fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeJSON reads a size-limited JSON body into dest.
func decodeJSON(r *http.Request, dest any) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dest); err != nil {
		return fmt.Errorf("decoding request body: %w", err)
	}
	return nil
}

// parseID extracts an int64 from a chi URL parameter.
func parseID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	if raw == "" {
		return 0, fmt.Errorf("missing URL parameter %q", param)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %q parameter: %w", param, err)
	}
	return id, nil
}

// parseLimit reads the optional "limit" query parameter, bounded to upper.
func parseLimit(r *http.Request, def, upper int) int {
	raw := r.URL.Query().Get("limit")
	n, err := strconv.Atoi(raw)
	if raw == "" || err != nil || n <= 0 {
		return def
	}
	return min(n, upper)
}
