// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

/* router.go - Chi Route Tree

Route groups carry their own middleware: health and metrics are public,
the auth group is tightly rate limited, everything else requires a valid
session token, and mutating admin surfaces additionally require the
admin flag.
*/

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/streamwarden/internal/auth"
	"github.com/tomtom215/streamwarden/internal/config"
	"github.com/tomtom215/streamwarden/internal/middleware"
)

// NewRouter builds the full HTTP route tree.
func NewRouter(handler *Handler, jwtManager *auth.JWTManager, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS must be global to handle OPTIONS preflight.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Security.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rateLimit := func(next http.Handler) http.Handler { return next }
	if !cfg.Security.RateLimitDisabled {
		rateLimit = httprate.LimitByIP(cfg.Security.RateLimitReqs, cfg.Security.RateLimitWindow)
	}

	// Public endpoints.
	r.Get("/api/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	// Credential exchange gets a tighter limit than the data plane.
	r.Route("/api/auth", func(r chi.Router) {
		r.Use(loginRateLimit(cfg))
		r.Post("/login", handler.Login)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtManager))
			r.Get("/me", handler.Me)
		})
	})

	// Authenticated data plane.
	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit)
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)
		r.Use(auth.Middleware(jwtManager))

		r.Get("/servers", handler.ListServers)
		r.Get("/servers/{id}", handler.GetServer)
		r.Get("/servers/{id}/streams", handler.ListServerStreams)

		r.Get("/streams", handler.ListStreams)
		r.Get("/streams/permitted", handler.ListStreams)
		r.Get("/streams/{id}", handler.GetStream)
		r.Get("/streams/{id}/traffic", handler.StreamTraffic)

		// Push mutations are open to any account with visibility on the
		// stream; the handler enforces the grant check itself.
		r.Post("/streams/{id}/push", handler.AddPushDestination)
		r.Delete("/streams/{id}/push", handler.RemovePushDestination)

		r.Get("/sync/status", handler.SyncStatus)

		// Admin-only management surface.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAdmin)

			r.Post("/servers", handler.CreateServer)
			r.Delete("/servers/{id}", handler.DeleteServer)
			r.Post("/servers/{id}/test", handler.TestServer)

			r.Get("/users", handler.ListUsers)
			r.Post("/users", handler.CreateUser)
			r.Get("/users/{id}", handler.GetUser)
			r.Delete("/users/{id}", handler.DeleteUser)
			r.Get("/users/{id}/permissions", handler.ListPermissions)

			r.Get("/permissions", handler.ListAllPermissions)
			r.Post("/permissions", handler.CreatePermission)
			r.Delete("/permissions/{id}", handler.DeletePermission)

			r.Post("/sync", handler.TriggerSync)
		})
	})

	// WebSocket stats feed. Browsers cannot set an Authorization header on
	// a WebSocket handshake, so the auth middleware also accepts a token
	// query parameter here.
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(jwtManager))
		r.Get("/ws", handler.WebSocket)
	})

	return r
}

// loginRateLimit bounds credential-stuffing attempts regardless of the
// general rate-limit setting.
func loginRateLimit(cfg *config.Config) func(http.Handler) http.Handler {
	if cfg.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.LimitByIP(10, cfg.Security.RateLimitWindow)
}
