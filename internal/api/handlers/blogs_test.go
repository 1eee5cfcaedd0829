package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/hoanghai1803/quill/internal/models"
)

func TestCreateBlog(t *testing.T) {
	store := newTestStore(t)
	reloader := &countingReloader{}

	body := `{
		"name": "Coffee Notes",
		"theme": "coffee",
		"keywords": ["Espresso", "espresso", "grinders"],
		"frequency": "weekly",
		"wordpress": {"url": "https://blog.example.com", "username": "admin", "app_password": "secret pass"},
		"is_active": true
	}`
	w := serve(http.MethodPost, "/api/blogs", "/api/blogs", body, CreateBlog(store, reloader))

	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var got models.Blog
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if got.ID == 0 {
		t.Error("expected an id")
	}
	if got.WordPress.AppPassword != redactedSecret {
		t.Errorf("app password leaked: %q", got.WordPress.AppPassword)
	}
	if strings.Join(got.Keywords, ",") != "espresso,grinders" {
		t.Errorf("keywords = %v", got.Keywords)
	}
	if reloader.calls != 1 {
		t.Errorf("schedule reloads = %d, want 1", reloader.calls)
	}

	stored, err := store.GetBlog(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("GetBlog: %v", err)
	}
	if stored.WordPress.AppPassword != "secret pass" {
		t.Errorf("stored app password = %q", stored.WordPress.AppPassword)
	}
}

func TestCreateBlog_IsActiveDefault(t *testing.T) {
	tests := []struct {
		name     string
		isActive string
		want     bool
	}{
		{"omitted", "", true},
		{"explicit true", `, "is_active": true`, true},
		{"explicit false", `, "is_active": false`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			body := `{"name": "Tea Notes", "keywords": ["oolong"], "frequency": "daily"` + tt.isActive + `}`
			w := serve(http.MethodPost, "/api/blogs", "/api/blogs", body, CreateBlog(store, nil))
			if w.Code != http.StatusCreated {
				t.Fatalf("got status %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
			}

			var got models.Blog
			if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
				t.Fatalf("decoding response: %v", err)
			}
			stored, err := store.GetBlog(context.Background(), got.ID)
			if err != nil {
				t.Fatalf("GetBlog: %v", err)
			}
			if stored.IsActive != tt.want {
				t.Errorf("is_active = %v, want %v", stored.IsActive, tt.want)
			}
		})
	}
}

func TestCreateBlog_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"name":`},
		{"no keywords", `{"name": "Empty", "keywords": [], "frequency": "daily"}`},
		{"bad frequency", `{"name": "Odd", "keywords": ["go"], "frequency": "hourly"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			w := serve(http.MethodPost, "/api/blogs", "/api/blogs", tt.body, CreateBlog(store, nil))
			if w.Code != http.StatusBadRequest {
				t.Errorf("got status %d, want %d; body: %s", w.Code, http.StatusBadRequest, w.Body.String())
			}
		})
	}
}

func TestUpdateBlog_KeepsMaskedPassword(t *testing.T) {
	store := newTestStore(t)
	blog := seedBlog(t, store)

	body := `{
		"name": "Coffee Notes Weekly",
		"keywords": ["espresso"],
		"frequency": "biweekly",
		"wordpress": {"url": "https://blog.example.com", "username": "editor", "app_password": "********"},
		"is_active": true
	}`
	target := "/api/blogs/" + itoa(blog.ID)
	w := serve(http.MethodPut, "/api/blogs/{blogID}", target, body, UpdateBlog(store, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d; body: %s", w.Code, w.Body.String())
	}

	stored, err := store.GetBlog(context.Background(), blog.ID)
	if err != nil {
		t.Fatalf("GetBlog: %v", err)
	}
	if stored.Name != "Coffee Notes Weekly" || stored.Frequency != models.FrequencyBiweekly {
		t.Errorf("stored blog = %+v", stored)
	}
	if stored.WordPress.Username != "editor" || stored.WordPress.AppPassword != "abcd efgh ijkl" {
		t.Errorf("wordpress = %+v", stored.WordPress)
	}
}

func TestGetBlog(t *testing.T) {
	store := newTestStore(t)
	blog := seedBlog(t, store)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"found", "/api/blogs/" + itoa(blog.ID), http.StatusOK},
		{"missing", "/api/blogs/999", http.StatusNotFound},
		{"bad id", "/api/blogs/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(http.MethodGet, "/api/blogs/{blogID}", tt.target, "", GetBlog(store))
			if w.Code != tt.want {
				t.Fatalf("got status %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusOK && strings.Contains(w.Body.String(), "abcd efgh ijkl") {
				t.Error("response leaks the application password")
			}
		})
	}
}

func TestDeactivateAndListBlogs(t *testing.T) {
	store := newTestStore(t)
	blog := seedBlog(t, store)
	reloader := &countingReloader{}

	w := serve(http.MethodPost, "/api/blogs/{blogID}/deactivate", "/api/blogs/"+itoa(blog.ID)+"/deactivate", "", DeactivateBlog(store, reloader))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d; body: %s", w.Code, w.Body.String())
	}
	if reloader.calls != 1 {
		t.Errorf("schedule reloads = %d, want 1", reloader.calls)
	}

	for target, want := range map[string]int{"/api/blogs": 1, "/api/blogs?active=true": 0} {
		w := serve(http.MethodGet, "/api/blogs", target, "", ListBlogs(store))
		var blogs []models.Blog
		if err := json.NewDecoder(w.Body).Decode(&blogs); err != nil {
			t.Fatalf("decoding %s: %v", target, err)
		}
		if len(blogs) != want {
			t.Errorf("%s returned %d blogs, want %d", target, len(blogs), want)
		}
	}
}
