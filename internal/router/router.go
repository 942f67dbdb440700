// Package router sets up all HTTP routes and middleware chains for the
// weechatorg API. Public routes serve listings and accept submissions;
// moderation routes are restricted to local connections.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"weechatorg/internal/handlers"
	"weechatorg/internal/middleware"
)

// New creates and returns the configured Chi router with all middleware
// and route groups wired up. uploads limits the submission endpoints.
func New(themes *handlers.Themes, uploads *middleware.RateLimiter) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SecureHeaders)

	r.Get("/health", healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/themes", themes.List)
		r.Get("/themes/choices", themes.Choices)
		r.Get("/themes/{id}", themes.Show)
		r.Get("/themes/{id}/preview", themes.Preview)

		// Every accepted upload rewrites the feeds, so uploads are throttled.
		r.Group(func(r chi.Router) {
			if uploads != nil {
				r.Use(uploads.Middleware)
			}
			r.Post("/themes", themes.Submit)
			r.Post("/themes/{id}", themes.Update)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.LocalOnly)
			r.Post("/themes/{id}/approve", themes.Approve)
			r.Post("/themes/{id}/unpublish", themes.Unpublish)
			r.Post("/export", themes.Export)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
