package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/yourusername/userbase/internal/apperr"
	"github.com/yourusername/userbase/internal/http/respond"
	"github.com/yourusername/userbase/internal/models"
	"github.com/yourusername/userbase/internal/users"
)

type contextKey string

const userContextKey contextKey = "current-user"

// AccessTokenCookie is the cookie carrying the access token.
const AccessTokenCookie = "auth_token"

// RequireAuth verifies the access token from the Authorization header or the
// auth_token cookie, loads the referenced user, and attaches it to the
// request context. Any failure ends the request with 401.
func RequireAuth(service *users.Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respond.Error(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		user, err := service.Authenticate(r.Context(), token)
		if err != nil {
			// A store outage is not a credential rejection.
			if apperr.KindOf(err) != apperr.KindUnauthorized {
				log.Printf("authenticate failed: %v", err)
				respond.Error(w, http.StatusInternalServerError, "something went wrong", nil)
				return
			}
			respond.Error(w, http.StatusUnauthorized, "invalid access token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserFromContext returns the authenticated user set by RequireAuth.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userContextKey).(models.User)
	return user, ok
}

func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, found := strings.CutPrefix(header, "Bearer "); found {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}
