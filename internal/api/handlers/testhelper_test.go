package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hoanghai1803/quill/internal/models"
	"github.com/hoanghai1803/quill/internal/storage"
)

// newTestStore creates an in-memory SQLite store with migrations applied. It
// registers a cleanup function to close the database when the test
// completes.
func newTestStore(t *testing.T) *storage.Store {
	t.Helper()

	db, err := storage.OpenDatabase(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := storage.RunMigrations(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}

	return storage.NewStore(db)
}

// seedBlog stores a valid, WordPress-connected blog.
func seedBlog(t *testing.T, store *storage.Store) *models.Blog {
	t.Helper()
	blog := &models.Blog{
		Name:      "Coffee Notes",
		Theme:     "coffee",
		Keywords:  []string{"espresso"},
		Frequency: models.FrequencyWeekly,
		WordPress: models.WordPressTarget{URL: "https://blog.example.com", Username: "admin", AppPassword: "abcd efgh ijkl"},
		IsActive:  true,
	}
	if _, err := store.CreateBlog(context.Background(), blog); err != nil {
		t.Fatalf("seeding blog: %v", err)
	}
	return blog
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// serve routes a request through a chi router with the given pattern so
// URL parameters resolve the way they do in production.
func serve(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// fakeRunner records calls and drives runs straight to a terminal state
// through the store.
type fakeRunner struct {
	store *storage.Store

	mu        sync.Mutex
	triggered []string
	republish []bool
	err       error
}

func (f *fakeRunner) ExecuteRun(ctx context.Context, blog *models.Blog, trigger string) (*models.Run, error) {
	run, err := f.TriggerAsync(ctx, blog, trigger)
	if err != nil {
		return nil, err
	}
	return f.store.FailRun(ctx, blog.ID, run.ID, "research", "research failed (unreachable): timeout")
}

func (f *fakeRunner) TriggerAsync(ctx context.Context, blog *models.Blog, trigger string) (*models.Run, error) {
	f.mu.Lock()
	f.triggered = append(f.triggered, trigger)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.store.CreateRun(ctx, blog.ID, trigger)
}

func (f *fakeRunner) Republish(ctx context.Context, blogID int64, runID string, edited *models.ContentDraft, republish bool) (*models.Run, error) {
	f.mu.Lock()
	f.republish = append(f.republish, republish)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.store.UpdateRunContent(ctx, blogID, runID, edited)
}

type countingReloader struct {
	calls int
}

func (c *countingReloader) Reload(context.Context) error {
	c.calls++
	return nil
}
