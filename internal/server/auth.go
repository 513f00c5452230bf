package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// apiKeyHeaders are checked in order; the first non-empty value wins.
var apiKeyHeaders = []string{"API_KEY", "x-api-key", "api-key", "x_api_key"}

func providedAPIKey(r *http.Request) string {
	for _, h := range apiKeyHeaders {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// requireAPIKey rejects requests whose key does not match expected. An empty
// expected key is a server misconfiguration.
func requireAPIKey(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" {
				writeError(w, http.StatusInternalServerError, "Endpoint API key not configured on server")
				return
			}
			got := providedAPIKey(r)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				writeError(w, http.StatusUnauthorized, "Invalid or missing API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
