package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"regnotify/internal/platform/middleware"
	"regnotify/internal/webhook"
)

const requestTimeout = 120 * time.Second

// RouterDeps bundles everything the router mounts.
type RouterDeps struct {
	Auth      *AuthHandler
	Console   *ConsoleHandler
	Messages  *MessageHandler
	Webhook   *webhook.Handler
	Validator middleware.SessionValidator
	Logger    *slog.Logger
	Health    http.HandlerFunc
}

// NewRouter assembles the console API. The webhook and login are public;
// everything else sits behind the session guard.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Timeout(requestTimeout))

	r.Handle("/metrics", promhttp.Handler())
	if deps.Health != nil {
		r.Get("/healthz", deps.Health)
	}

	deps.Auth.RegisterPublic(r)
	if deps.Webhook != nil {
		deps.Webhook.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(deps.Validator, deps.Logger))
		deps.Auth.RegisterProtected(r)
		deps.Console.Register(r)
		deps.Messages.Register(r)
	})

	return r
}
