package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// CORS applies the configured origin policy. Credentialed cookie auth means
// the response echoes the specific origin unless the config allows all; an
// origin outside the allow list gets no Access-Control headers at all.
// Preflight OPTIONS requests are answered here and never reach the mux.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	allowAll := slices.Contains(allowedOrigins, "*")
	allowed := make([]string, len(allowedOrigins))
	for i, origin := range allowedOrigins {
		allowed[i] = strings.ToLower(origin)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
				setSharedCORSHeaders(w)
			case slices.Contains(allowed, strings.ToLower(origin)):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				setSharedCORSHeaders(w)
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func setSharedCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Credentials", "true")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
}
