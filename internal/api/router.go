package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hoanghai1803/quill/internal/api/handlers"
	"github.com/hoanghai1803/quill/internal/config"
	"github.com/hoanghai1803/quill/internal/storage"
)

// NewRouter creates and configures the HTTP router with all admin API
// routes. scheduler may be nil when scheduling is disabled.
func NewRouter(store *storage.Store, runner handlers.RunExecutor, scheduler handlers.ScheduleReloader, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(middleware.RequestID)
	r.Use(RequestLogger)
	r.Use(Recovery)
	r.Use(CORS(cfg.Server.AllowedOrigins))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handlers.Health(store))

		api.Get("/blogs", handlers.ListBlogs(store))
		api.Post("/blogs", handlers.CreateBlog(store, scheduler))

		api.Route("/blogs/{blogID}", func(blog chi.Router) {
			blog.Get("/", handlers.GetBlog(store))
			blog.Put("/", handlers.UpdateBlog(store, scheduler))
			blog.Post("/deactivate", handlers.DeactivateBlog(store, scheduler))

			blog.Post("/runs", handlers.TriggerRun(store, runner))
			blog.Get("/runs", handlers.ListRuns(store))
			blog.Get("/runs/{runID}", handlers.GetRun(store))
			blog.Put("/runs/{runID}/content", handlers.EditRunContent(store, runner))

			blog.Get("/configs/{name}", handlers.GetConfig(store))
			blog.Put("/configs/{name}", handlers.PutConfig(store))
		})

		api.Get("/configs/{name}", handlers.GetConfig(store))
		api.Put("/configs/{name}", handlers.PutConfig(store))

		api.Get("/runs/recent", handlers.RecentRuns(store))
		api.Get("/spend/today", handlers.SpendToday(store, cfg.Cost.DailyBudgetUSD))
	})

	return r
}
