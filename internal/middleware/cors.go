package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS 跨域中间件，allowedOrigin 为 "*" 时允许任意来源
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	origins := []string{"*"}
	if o := strings.TrimSpace(allowedOrigin); o != "" {
		origins = strings.Split(o, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Requested-With"},
		ExposedHeaders: []string{"X-Session-Id"},
		MaxAge:         300,
	})
}
