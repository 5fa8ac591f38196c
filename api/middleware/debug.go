package middleware

import (
	"net/http"

	"github.com/angelmondragon/tourbook-backend/api/responses"
)

// Debug flags requests so error responses include diagnostics. Enabled
// outside production.
func Debug(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(responses.WithDebug(r.Context(), true)))
		})
	}
}
