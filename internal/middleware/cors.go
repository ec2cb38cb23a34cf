// Package middleware provides HTTP middleware for the CARE API.
package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"

	"github.com/ashureev/care-assistant/internal/identity"
)

// CORS returns middleware that handles CORS headers. Credentials are only
// allowed when every origin is explicit.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", identity.SessionHeaderName},
		ExposedHeaders:   []string{identity.SessionHeaderName},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
		MaxAge:           300,
	})
}
