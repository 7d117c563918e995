package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/wolfman30/ai-mail-assistant/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/ai-mail-assistant/internal/http/middleware"
	"github.com/wolfman30/ai-mail-assistant/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	Chat           *handlers.ChatHandler
	LineWebhook    http.Handler
	MetricsHandler http.Handler

	// Guards /api/chat when set.
	OperatorJWTSecret string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.HealthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.LineWebhook != nil {
			public.Method(http.MethodPost, "/webhooks/line", cfg.LineWebhook)
		}
	})

	if cfg.Chat != nil {
		r.Route("/api", func(api chi.Router) {
			api.Use(httpmiddleware.OperatorJWT(cfg.OperatorJWTSecret))
			api.Post("/chat", cfg.Chat.Handle)
		})
	}

	return r
}
