package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/services"
)

type contextKey string

const userIDKey contextKey = "user_id"

// ExtractBearerToken returns the token from an "Authorization: Bearer x"
// header value, or "".
func ExtractBearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// RequireAuth validates the access token statelessly (signature +
// expiry) and puts the subject user id on the request context.
func RequireAuth(tokens *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				http.Error(w, "missing access token", http.StatusUnauthorized)
				return
			}

			userID, err := tokens.ParseAccessToken(token)
			if err != nil {
				if errors.Is(err, services.ErrTokenExpired) {
					http.Error(w, "access token expired", http.StatusUnauthorized)
					return
				}
				http.Error(w, "invalid access token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext returns the authenticated user id set by RequireAuth.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(userIDKey).(uuid.UUID)
	return id, ok
}
