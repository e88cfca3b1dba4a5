// Package router sets up the HTTP routes and middleware chain for the event
// tree API. Reads and mutations share one tree of routes; mutations also
// pass through the rate limiter.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"eventtree/internal/handlers"
	"eventtree/internal/middleware"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options configures the router. Zero values disable the corresponding
// feature.
type Options struct {
	RequestTimeout time.Duration
	Limiter        *middleware.RateLimiter
	DB             Pinger
}

// New creates and returns the configured Chi router.
func New(api *handlers.API, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.SecureHeaders)
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", healthHandler(opts.DB))

	mutating := func(r chi.Router) chi.Router {
		if opts.Limiter == nil {
			return r
		}
		return r.With(opts.Limiter.Middleware)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Get("/", api.ListEvents)
			mutating(r).Post("/", api.CreateEvent)

			r.Route("/{eventID}", func(r chi.Router) {
				r.Get("/", api.GetEvent)
				r.Get("/categories/roots", api.RootCategories)
				r.Get("/categories/tree", api.FullTree)
				r.Get("/changes", api.TreeChanges)
				mutating(r).Post("/categories", api.CreateCategory)
			})
		})

		r.Route("/categories/{id}", func(r chi.Router) {
			r.Get("/", api.GetCategory)
			r.Get("/subtree", api.Subtree)
			r.Get("/ancestors", api.Ancestors)
			mutating(r).Put("/parent", api.MoveCategory)
			mutating(r).Delete("/", api.DeleteCategory)
		})
	})

	return r
}

// healthHandler returns a JSON health check response. With a database
// configured, an unreachable database yields 503.
func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}
}
