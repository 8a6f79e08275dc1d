package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// authMiddleware gates a handler behind the configured API token. An empty
// token disables authentication, which is the default for the loopback bind.
func authMiddleware(token string, next http.HandlerFunc) http.HandlerFunc {
	if token == "" {
		return next
	}
	expected := []byte(token)
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			rejectUnauthorized(w)
			return
		}
		presented := []byte(strings.TrimPrefix(header, bearerPrefix))
		if subtle.ConstantTimeCompare(presented, expected) != 1 {
			rejectUnauthorized(w)
			return
		}
		next(w, r)
	}
}

func rejectUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
