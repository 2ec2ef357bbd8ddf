package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthMiddleware guards the agent endpoint with a static key, accepted
// either as a Bearer token or an X-API-Key header. An empty key disables
// the check so local development needs no credential.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	expect := []byte(apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-API-Key")
		if token == "" {
			token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		}
		if token == "" {
			http.Error(w, "credentials required", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), expect) != 1 {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
