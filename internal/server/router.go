package server

import (
	"context"
	"log"
	"net/http"

	"github.com/cloo-solutions/mmrag/internal/api"
	"github.com/cloo-solutions/mmrag/internal/api/handlers"
	"github.com/cloo-solutions/mmrag/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxRequestBytes int64 = 1 << 20
	defaultMaxUploadBytes  int64 = 32 << 20
)

type RouterConfig struct {
	AuthValidator   middleware.AuthValidator
	AuthHandler     *handlers.AuthHandler
	DocumentHandler *handlers.DocumentHandler
	SessionHandler  *handlers.SessionHandler

	// HealthCheck reports backing store reachability; nil means always healthy.
	HealthCheck func(ctx context.Context) error

	MaxRequestBytes int64
	MaxUploadBytes  int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.MaxRequestBytes <= 0 {
		cfg.MaxRequestBytes = defaultMaxRequestBytes
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.HealthCheck != nil {
			if err := cfg.HealthCheck(r.Context()); err != nil {
				log.Printf("health check failed: %v", err)
				api.Error(w, http.StatusServiceUnavailable, "unavailable")
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		// Uploads carry base64 images and get their own, larger limit.
		r.With(middleware.MaxBodyBytes(cfg.MaxUploadBytes)).Post("/documents", cfg.DocumentHandler.Upload)

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodyBytes(cfg.MaxRequestBytes))

			r.Get("/me", cfg.AuthHandler.Me)

			r.Get("/documents", cfg.DocumentHandler.List)
			r.Get("/documents/{id}", cfg.DocumentHandler.Get)
			r.Delete("/documents/{id}", cfg.DocumentHandler.Delete)

			r.Post("/query", cfg.SessionHandler.Query)

			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", cfg.SessionHandler.Create)
				r.Get("/", cfg.SessionHandler.List)
				r.Get("/{id}", cfg.SessionHandler.Get)
				r.Delete("/{id}", cfg.SessionHandler.Delete)
				r.Get("/{id}/documents", cfg.DocumentHandler.ListForSession)
			})
		})
	})

	return r
}
