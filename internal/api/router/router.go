// Package router assembles the HTTP surface.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/palinopr/leadrouter/internal/http/handlers"
	httpmiddleware "github.com/palinopr/leadrouter/internal/http/middleware"
	"github.com/palinopr/leadrouter/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Webhook        *handlers.WebhookHandler
	Threads        *handlers.ThreadsHandler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", handlers.HealthCheck)
	if cfg.Webhook != nil {
		r.Post("/webhooks/inbound", cfg.Webhook.HandleInbound)
	}
	if cfg.Threads != nil {
		r.Get("/threads/{key}", cfg.Threads.Get)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
