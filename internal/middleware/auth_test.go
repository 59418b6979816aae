package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
	"github.com/mtaa-app/mtaa-backend/internal/services"
)

// nopTokenStore satisfies TokenStore for access-token-only tests; the
// middleware never touches refresh token state.
type nopTokenStore struct{}

func (nopTokenStore) Create(ctx context.Context, token *models.RefreshToken) error { return nil }
func (nopTokenStore) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	return nil, services.ErrNotFound
}
func (nopTokenStore) RevokeByHash(ctx context.Context, hash string) (bool, error) { return false, nil }
func (nopTokenStore) RevokeFamily(ctx context.Context, familyID uuid.UUID) error  { return nil }
func (nopTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	return nil
}

func authedHandler(t *testing.T, want uuid.UUID) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := UserIDFromContext(r.Context())
		if !ok {
			t.Error("user id missing from context")
		} else if got != want {
			t.Errorf("context user id = %s, want %s", got, want)
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	svc := services.NewTokenService(nopTokenStore{}, "test-secret", 15*time.Minute, time.Hour)
	userID := uuid.New()
	pair, err := svc.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	handler := RequireAuth(svc)(authedHandler(t, userID))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status %d, want 204", rec.Code)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	// Negative TTL mints an already-expired access token.
	svc := services.NewTokenService(nopTokenStore{}, "test-secret", -time.Minute, time.Hour)
	pair, err := svc.Issue(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	handler := RequireAuth(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("expired token reached the handler")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "expired") {
		t.Fatalf("body %q should name expiry", rec.Body.String())
	}
}
