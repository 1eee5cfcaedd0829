package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/quill/internal/generation"
	"github.com/hoanghai1803/quill/internal/models"
	"github.com/hoanghai1803/quill/internal/storage"
)

// RunExecutor starts runs and applies content edits.
type RunExecutor interface {
	ExecuteRun(ctx context.Context, blog *models.Blog, trigger string) (*models.Run, error)
	TriggerAsync(ctx context.Context, blog *models.Blog, trigger string) (*models.Run, error)
	Republish(ctx context.Context, blogID int64, runID string, edited *models.ContentDraft, republish bool) (*models.Run, error)
}

// TriggerRun handles POST /api/blogs/{blogID}/runs. By default the run
// executes in the background and the response is 202 with the new run;
// ?sync=true waits for the run to finish.
func TriggerRun(store *storage.Store, runner RunExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		blogID, err := parseID(r, "blogID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		blog, err := store.GetBlog(ctx, blogID)
		if err != nil {
			writeStoreError(w, err, "Failed to get blog")
			return
		}
		if !blog.IsActive {
			writeError(w, http.StatusConflict, "Blog is inactive")
			return
		}

		if r.URL.Query().Get("sync") == "true" {
			run, err := runner.ExecuteRun(ctx, blog, "manual")
			if err != nil {
				writeStoreError(w, err, "Failed to execute run")
				return
			}
			writeJSON(w, http.StatusOK, run)
			return
		}

		run, err := runner.TriggerAsync(ctx, blog, "manual")
		if err != nil {
			writeStoreError(w, err, "Failed to start run")
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/api/blogs/%d/runs/%s", blogID, run.ID))
		writeJSON(w, http.StatusAccepted, run)
	}
}

// ListRuns handles GET /api/blogs/{blogID}/runs, newest first.
func ListRuns(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blogID, err := parseID(r, "blogID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		runs, err := store.ListRuns(r.Context(), blogID, parseLimit(r, 50, 200))
		if err != nil {
			writeStoreError(w, err, "Failed to list runs")
			return
		}
		if runs == nil {
			runs = []models.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// GetRun handles GET /api/blogs/{blogID}/runs/{runID}.
func GetRun(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blogID, err := parseID(r, "blogID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		run, err := store.GetRun(r.Context(), blogID, chi.URLParam(r, "runID"))
		if err != nil {
			writeStoreError(w, err, "Failed to get run")
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

// RecentRuns handles GET /api/runs/recent across all blogs.
func RecentRuns(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := store.ListRecentRuns(r.Context(), parseLimit(r, 20, 100))
		if err != nil {
			writeStoreError(w, err, "Failed to list recent runs")
			return
		}
		if runs == nil {
			runs = []models.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// EditRunContent handles PUT /api/blogs/{blogID}/runs/{runID}/content. The
// edited markdown is re-rendered; images and model metadata of the stored
// draft are kept. With "republish": true the existing WordPress post is
// updated in place.
func EditRunContent(store *storage.Store, runner RunExecutor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		blogID, err := parseID(r, "blogID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		runID := chi.URLParam(r, "runID")

		var body struct {
			Title     string             `json:"title"`
			Body      string             `json:"body"`
			Summary   string             `json:"summary"`
			Keywords  []string           `json:"keywords"`
			SEO       models.SEOMetadata `json:"seo"`
			Republish bool               `json:"republish"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if strings.TrimSpace(body.Title) == "" || strings.TrimSpace(body.Body) == "" {
			writeError(w, http.StatusBadRequest, "title and body are required")
			return
		}

		run, err := store.GetRun(ctx, blogID, runID)
		if err != nil {
			writeStoreError(w, err, "Failed to get run")
			return
		}
		if run.Content == nil {
			writeError(w, http.StatusConflict, "Run has no generated content to edit")
			return
		}

		draft, err := generation.NewDraft(run.Content.Topic, body.Title, body.Body, body.Summary, body.Keywords, body.SEO, nil)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		draft.Images = run.Content.Images
		draft.Model = run.Content.Model

		updated, err := runner.Republish(ctx, blogID, runID, draft, body.Republish)
		if err != nil {
			writeStoreError(w, err, "Failed to update run content")
			return
		}

		slog.Info("run content edited", "blog_id", blogID, "run_id", runID, "republish", body.Republish)
		writeJSON(w, http.StatusOK, updated)
	}
}
