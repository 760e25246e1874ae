// Package auth implements the admin bearer-token gate that guards
// KeyMaster's management endpoints.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/wisbric/keymaster/internal/httpserver"
)

// Gate returns middleware that requires a Bearer token equal to secret. If
// secret is empty, the gate rejects every request with 503 — the admin
// endpoints are disabled, not merely unauthenticated.
func Gate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				httpserver.RespondError(w, http.StatusServiceUnavailable, "unavailable", "admin endpoints are disabled (no admin secret configured)")
				return
			}

			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				w.Header().Set("WWW-Authenticate", "Bearer")
				httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "invalid admin credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(h, prefix) {
		return "", false
	}
	return strings.TrimPrefix(h, prefix), true
}
