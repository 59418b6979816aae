package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
)

type fakeTokenStore struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{tokens: make(map[string]*models.RefreshToken)}
}

func (s *fakeTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *token
	s.tokens[token.TokenHash] = &cp
	return nil
}

func (s *fakeTokenStore) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTokenStore) RevokeByHash(ctx context.Context, hash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[hash]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (s *fakeTokenStore) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.FamilyID == familyID {
			t.Revoked = true
		}
	}
	return nil
}

func (s *fakeTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func newTestTokenService(store TokenStore) *TokenService {
	return NewTokenService(store, "test-secret", 15*time.Minute, 30*24*time.Hour)
}

func TestTokenIssueAndParse(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	userID := uuid.New()

	pair, err := svc.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token pair")
	}
	if pair.ExpiresIn != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expires_in %d", pair.ExpiresIn)
	}

	got, err := svc.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if got != userID {
		t.Fatalf("subject mismatch: got %s want %s", got, userID)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }

	pair, err := svc.Issue(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := svc.ParseAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAccessTokenTampered(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	other := NewTokenService(newFakeTokenStore(), "other-secret", 15*time.Minute, time.Hour)

	pair, _ := other.Issue(context.Background(), uuid.New())
	if _, err := svc.ParseAccessToken(pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for foreign signature, got %v", err)
	}
}

func TestRefreshRotation(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	ctx := context.Background()

	pair, _ := svc.Issue(ctx, uuid.New())

	next, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// The rotated-out token is now a reuse signal.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused, got %v", err)
	}
}

func TestReuseRevokesFamily(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	ctx := context.Background()

	pair, _ := svc.Issue(ctx, uuid.New())
	second, _ := svc.Refresh(ctx, pair.RefreshToken)
	third, _ := svc.Refresh(ctx, second.RefreshToken)

	// Replaying the first token poisons the whole lineage.
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("expected ErrTokenReused, got %v", err)
	}
	if _, err := svc.Refresh(ctx, third.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("latest token should be dead after family revocation, got %v", err)
	}
}

func TestRefreshExpired(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	ctx := context.Background()

	pair, _ := svc.Issue(ctx, uuid.New())

	svc.now = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRefreshUnknownToken(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	if _, err := svc.Refresh(context.Background(), "no-such-token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestRevoke(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	ctx := context.Background()

	pair, _ := svc.Issue(ctx, uuid.New())
	if err := svc.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if _, err := svc.Refresh(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenReused) {
		t.Fatalf("revoked token should read as reuse, got %v", err)
	}

	// Revoking an unknown token is a no-op, not an error.
	if err := svc.Revoke(ctx, "no-such-token"); err != nil {
		t.Fatalf("Revoke unknown: %v", err)
	}
}

func TestRevokeAll(t *testing.T) {
	svc := newTestTokenService(newFakeTokenStore())
	ctx := context.Background()
	userID := uuid.New()

	a, _ := svc.Issue(ctx, userID)
	b, _ := svc.Issue(ctx, userID)
	other, _ := svc.Issue(ctx, uuid.New())

	if err := svc.RevokeAll(ctx, userID); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}

	for _, raw := range []string{a.RefreshToken, b.RefreshToken} {
		if _, err := svc.Refresh(ctx, raw); err == nil {
			t.Fatal("revoked session still refreshes")
		}
	}
	if _, err := svc.Refresh(ctx, other.RefreshToken); err != nil {
		t.Fatalf("unrelated user's session was revoked: %v", err)
	}
}

func TestHashTokenStable(t *testing.T) {
	if HashToken("abc") != HashToken("abc") {
		t.Fatal("hash is not deterministic")
	}
	if HashToken("abc") == HashToken("abd") {
		t.Fatal("distinct tokens collide")
	}
	if len(HashToken("abc")) != 64 {
		t.Fatal("expected hex sha-256 output")
	}
}
