package app

import (
	"net/http"

	"github.com/rs/cors"
)

// WithCORS wraps the handler with a CORS policy built from config. With no
// configured origins the handler is returned unchanged; credentials ride on
// cookies, so a wildcard allow-all would be unsafe here.
func WithCORS(next http.Handler, cfg Config) http.Handler {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return next
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           cfg.CORSMaxAgeSeconds,
	})
	return c.Handler(next)
}
