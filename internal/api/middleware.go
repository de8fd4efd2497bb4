// Package api implements the Meridian REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const apiKeyContextKey contextKey = "api-key"

// AuthMiddleware returns middleware that validates a Bearer API key against
// the configured key set. If enabled is false, all requests pass through
// (disabled mode, local dev).
func AuthMiddleware(enabled bool, keys []string) func(http.Handler) http.Handler {
	keySet := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		keySet[k] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "missing API key", nil)
				return
			}
			key := strings.TrimPrefix(auth, "Bearer ")
			if _, ok := keySet[key]; !ok {
				writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, "invalid API key", nil)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), apiKeyContextKey, key)))
		})
	}
}

// requestKey identifies the caller for rate limiting: the API key when
// authenticated, otherwise the remote address.
func requestKey(r *http.Request) string {
	if key, ok := r.Context().Value(apiKeyContextKey).(string); ok {
		return key
	}
	return r.RemoteAddr
}
