/**
 * @description
 * This file sets up the HTTP router for the platform-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// PlatformRoutes creates and returns a new router for the platform service.
func PlatformRoutes(h *PlatformHandlers, webhook *WebhookHandler, metricsHandler http.Handler, authSecret string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Handle("/metrics", metricsHandler)

	// The custody webhook authenticates with its own HMAC signature.
	r.Post("/webhook/custody", webhook.ServeHTTP)

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		r.Use(PlatformAuthMiddleware(authSecret))

		r.Post("/transactions/rpc", h.RPCHandler)
		r.Get("/transactions/{id}", h.GetTransactionHandler)
	})

	return r
}
