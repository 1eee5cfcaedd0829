package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/quill/internal/storage"
)

// GetConfig handles GET /api/blogs/{blogID}/configs/{name} and the global
// form GET /api/configs/{name}. The response carries the version a later
// PUT must echo back.
func GetConfig(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		blogID, ok := configScope(w, r, store)
		if !ok {
			return
		}

		doc, err := store.GetConfigDocument(ctx, blogID, chi.URLParam(r, "name"))
		if err != nil {
			writeStoreError(w, err, "Failed to get configuration")
			return
		}
		writeJSON(w, http.StatusOK, doc)
	}
}

// PutConfig handles PUT /api/blogs/{blogID}/configs/{name} and
// PUT /api/configs/{name}. The body is {"content": ..., "version": "..."}.
// content may be any JSON value, or a string holding the editor text; the
// text must itself parse as JSON. version must match the stored document
// (empty when creating it).
func PutConfig(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		blogID, ok := configScope(w, r, store)
		if !ok {
			return
		}
		name := chi.URLParam(r, "name")

		var body struct {
			Content json.RawMessage `json:"content"`
			Version string          `json:"version"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		if len(body.Content) == 0 {
			writeError(w, http.StatusBadRequest, "content is required")
			return
		}

		content := []byte(body.Content)
		var text string
		if err := json.Unmarshal(body.Content, &text); err == nil {
			content = []byte(text)
		}

		doc, err := store.PutConfigDocument(ctx, blogID, name, content, body.Version)
		if err != nil {
			writeStoreError(w, err, "Failed to save configuration")
			return
		}

		slog.Info("configuration saved", "blog_id", blogID, "name", name, "version", doc.Version)
		writeJSON(w, http.StatusOK, doc)
	}
}

// configScope resolves the blog a document belongs to. Routes without a
// blogID address the global documents.
func configScope(w http.ResponseWriter, r *http.Request, store *storage.Store) (int64, bool) {
	if chi.URLParam(r, "blogID") == "" {
		return storage.GlobalConfig, true
	}
	blogID, err := parseID(r, "blogID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	if _, err := store.GetBlog(r.Context(), blogID); err != nil {
		writeStoreError(w, err, "Failed to get blog")
		return 0, false
	}
	return blogID, true
}
