package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/manthann3/mobile-recommendation-chat-agent/cmd/phone-chat-api/handlers"
	"github.com/manthann3/mobile-recommendation-chat-agent/cmd/phone-chat-api/middleware"
	"github.com/manthann3/mobile-recommendation-chat-agent/internal/observability"
)

// AppConfig holds router configuration.
type AppConfig struct {
	RequestTimeout time.Duration
	CORSOrigins    []string
	MetricsEnabled bool
}

// Dependencies are the services the router exposes.
type Dependencies struct {
	Chat     handlers.ChatService
	Ready    func(ctx context.Context) error
	Registry *prometheus.Registry
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg AppConfig, deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	chatHandler := handlers.NewChatHandler(logger.WithOperation("http"), deps.Chat)
	r.MethodNotAllowed(chatHandler.MethodNotAllowed)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","service":"phone-chat"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				logger.Warn().Err(err).Msg("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	if cfg.MetricsEnabled && deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Post("/api/chat", chatHandler.Chat)
	r.Get("/api/chat", chatHandler.Health)
	r.Get("/api/chat/context/{conversationId}", chatHandler.GetContext)
	r.Delete("/api/chat/context/{conversationId}", chatHandler.ClearContext)

	return r
}
