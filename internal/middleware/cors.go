package middleware

import (
	"net/http"

	"github.com/go-chi/cors"

	"github.com/cargolink/escrow-api/internal/pkg/response"
)

// CORSHandler returns a configured CORS handler for Chi
func CORSHandler(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", response.ReplayHeader},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	})
}
