package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"pizza42-api/internal/container"
	"pizza42-api/internal/middleware"
)

// Scopes required by the order endpoints
const (
	ScopePlaceOrders = "place:orders"
)

// NewRouter wires middleware and routes for every endpoint
func NewRouter(c *container.Container) http.Handler {
	cfg := c.Config
	log := c.Logger

	r := chi.NewRouter()

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins

	r.Use(middleware.CORS(corsConfig, log))
	r.Use(middleware.RequestID())
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.AccessLog(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	healthHandler := NewHealthHandler(cfg.StoreName(), c.Health, log)
	authHandler := NewAuthHandler(log)
	orderHandler := NewOrderHandler(c.Orders, log)

	authenticate := middleware.Auth(c.Verifier, middleware.AuthConfig{
		StaleAfter: cfg.VerificationStaleAfter,
	}, log)

	r.Route("/api", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", healthHandler.Check)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/verify-token", authHandler.VerifyToken)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireVerifiedEmail(log))

				r.Get("/orders", orderHandler.ListOrders)
				r.With(middleware.RequireScope(ScopePlaceOrders, cfg.AllowIDTokenOrders, log)).
					Post("/orders", orderHandler.PlaceOrder)
			})
		})
	})

	r.NotFound(NotFound(log))
	r.MethodNotAllowed(MethodNotAllowed(log))

	log.Info("Router configured successfully")
	return r
}
