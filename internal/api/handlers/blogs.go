package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hoanghai1803/quill/internal/models"
	"github.com/hoanghai1803/quill/internal/storage"
)

const redactedSecret = "********"

// ScheduleReloader rebuilds the run schedule after blogs change. It may be
// nil when scheduling is disabled.
type ScheduleReloader interface {
	Reload(ctx context.Context) error
}

// ListBlogs handles GET /api/blogs. With ?active=true only active blogs are
// returned.
func ListBlogs(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly := r.URL.Query().Get("active") == "true"

		blogs, err := store.ListBlogs(r.Context(), activeOnly)
		if err != nil {
			writeStoreError(w, err, "Failed to list blogs")
			return
		}

		out := make([]models.Blog, 0, len(blogs))
		for _, b := range blogs {
			out = append(out, redact(b))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GetBlog handles GET /api/blogs/{blogID}.
func GetBlog(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := parseID(r, "blogID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		blog, err := store.GetBlog(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, "Failed to get blog")
			return
		}
		writeJSON(w, http.StatusOK, redact(*blog))
	}
}

// CreateBlog handles POST /api/blogs. A body without is_active creates an
// active blog.
func CreateBlog(store *storage.Store, scheduler ScheduleReloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blog := models.Blog{IsActive: true}
		if err := decodeJSON(r, &blog); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		blog.ID = 0
		if blog.WordPress.AppPassword == redactedSecret {
			blog.WordPress.AppPassword = ""
		}

		if _, err := store.CreateBlog(r.Context(), &blog); err != nil {
			writeStoreError(w, err, "Failed to create blog")
			return
		}
		reloadSchedule(r.Context(), scheduler)

		slog.Info("blog created", "blog_id", blog.ID, "name", blog.Name)
		writeJSON(w, http.StatusCreated, redact(blog))
	}
}

// UpdateBlog handles PUT /api/blogs/{blogID}. The body replaces every
// editable field; an empty or masked WordPress application password keeps
// the stored one.
func UpdateBlog(store *storage.Store, scheduler ScheduleReloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := parseID(r, "blogID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		var blog models.Blog
		if err := decodeJSON(r, &blog); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}

		existing, err := store.GetBlog(ctx, id)
		if err != nil {
			writeStoreError(w, err, "Failed to get blog")
			return
		}
		blog.ID = id
		blog.CreatedAt = existing.CreatedAt
		if blog.WordPress.AppPassword == "" || blog.WordPress.AppPassword == redactedSecret {
			blog.WordPress.AppPassword = existing.WordPress.AppPassword
		}

		if err := store.UpdateBlog(ctx, &blog); err != nil {
			writeStoreError(w, err, "Failed to update blog")
			return
		}
		reloadSchedule(ctx, scheduler)

		writeJSON(w, http.StatusOK, redact(blog))
	}
}

// DeactivateBlog handles POST /api/blogs/{blogID}/deactivate. Blogs are
// never deleted; deactivation stops scheduled runs.
func DeactivateBlog(store *storage.Store, scheduler ScheduleReloader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, err := parseID(r, "blogID")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		if err := store.SetBlogActive(ctx, id, false); err != nil {
			writeStoreError(w, err, "Failed to deactivate blog")
			return
		}
		reloadSchedule(ctx, scheduler)

		slog.Info("blog deactivated", "blog_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	}
}

func redact(b models.Blog) models.Blog {
	b.WordPress = b.WordPress.Redacted()
	return b
}

func reloadSchedule(ctx context.Context, scheduler ScheduleReloader) {
	if scheduler == nil {
		return
	}
	if err := scheduler.Reload(ctx); err != nil {
		slog.Warn("failed to reload schedule", "error", err)
	}
}
