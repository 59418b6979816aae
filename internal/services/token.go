package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// TokenStore is the persistence collaborator for refresh tokens.
type TokenStore interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	// FindByHash returns the record for a token hash, revoked or not,
	// or ErrNotFound.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// RevokeByHash marks the token revoked only if it is not revoked yet
	// and reports whether this call performed the transition. Two
	// concurrent refreshes race on this conditional update; the loser
	// sees false and must treat the token as reused.
	RevokeByHash(ctx context.Context, hash string) (bool, error)
	RevokeFamily(ctx context.Context, familyID uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// TokenPair is the credential set handed to a client after
// authentication.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // access token lifetime in seconds
}

// TokenService mints short-lived signed access tokens and long-lived
// opaque refresh tokens, and rotates refresh tokens on every use.
// Presenting an already-rotated token revokes its whole family.
type TokenService struct {
	store      TokenStore
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(store TokenStore, jwtSecret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		store:      store,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// HashToken returns the hex SHA-256 of an opaque refresh token. Only the
// hash is ever stored.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(buf), nil
}

func (s *TokenService) signAccessToken(userID uuid.UUID, expAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID.String(),
		"jti": uuid.New().String(),
		"iat": s.now().Unix(),
		"exp": expAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *TokenService) mintPair(ctx context.Context, userID, familyID uuid.UUID) (*TokenPair, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return nil, err
	}

	now := s.now()
	record := &models.RefreshToken{
		ID:        uuid.New(),
		UserID:    userID,
		FamilyID:  familyID,
		TokenHash: HashToken(raw),
		ExpiresAt: now.Add(s.refreshTTL),
		CreatedAt: now,
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	access, err := s.signAccessToken(userID, now.Add(s.accessTTL))
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: raw,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Issue mints a fresh token pair for a newly authenticated user,
// starting a new token family.
func (s *TokenService) Issue(ctx context.Context, userID uuid.UUID) (*TokenPair, error) {
	return s.mintPair(ctx, userID, uuid.New())
}

// Refresh rotates a refresh token: the presented token is revoked and a
// replacement issued in the same family. A token that is already
// revoked signals reuse of a superseded credential, so the entire
// family is revoked and the caller must re-authenticate.
func (s *TokenService) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	hash := HashToken(raw)

	record, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrTokenInvalid
		}
		return nil, err
	}

	if record.Revoked {
		if err := s.store.RevokeFamily(ctx, record.FamilyID); err != nil {
			return nil, err
		}
		return nil, ErrTokenReused
	}

	if s.now().After(record.ExpiresAt) {
		return nil, ErrTokenExpired
	}

	// Conditional revoke is the linearization point: of two concurrent
	// refreshes only one wins; the loser observes reuse.
	ok, err := s.store.RevokeByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.store.RevokeFamily(ctx, record.FamilyID); err != nil {
			return nil, err
		}
		return nil, ErrTokenReused
	}

	return s.mintPair(ctx, record.UserID, record.FamilyID)
}

// Revoke marks one refresh token revoked (logout). Other sessions for
// the same user are untouched. Unknown tokens are a no-op.
func (s *TokenService) Revoke(ctx context.Context, raw string) error {
	_, err := s.store.RevokeByHash(ctx, HashToken(raw))
	return err
}

// RevokeAll revokes every refresh token for a user (logout everywhere).
func (s *TokenService) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return s.store.RevokeAllForUser(ctx, userID)
}

// ParseAccessToken verifies an access token's signature and expiry and
// returns the subject user id. No server-side lookup is involved.
func (s *TokenService) ParseAccessToken(tokenStr string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, ErrTokenInvalid
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return userID, nil
}
