package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/meridianhq/meridian/internal/resourceservice"
	"github.com/meridianhq/meridian/internal/webhook"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer key auth is enforced; limiter may be
// nil to disable rate limiting. sseHandler, if non-nil, is mounted at
// GET /events inside the auth group.
func NewRouter(svc *resourceservice.Service, hooks *webhook.Registry, authEnabled bool, keys []string, limiter *RateLimiter, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc, hooks)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, keys))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	// Resource CRUD.
	r.Get("/data", h.List)
	r.Post("/data", h.Create)
	r.Post("/data/batch", h.Batch)
	r.Get("/data/{id}", h.Get)
	r.Put("/data/{id}", h.Update)
	r.Patch("/data/{id}", h.Patch)
	r.Delete("/data/{id}", h.Delete)

	// Search and analytics.
	r.Get("/search", h.Search)
	r.Get("/analytics/summary", h.AnalyticsSummary)

	// Webhook registrations.
	r.Post("/webhooks", h.CreateWebhook)
	r.Get("/webhooks", h.ListWebhooks)
	r.Delete("/webhooks/{id}", h.DeleteWebhook)

	// SSE event stream (protected by the same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
