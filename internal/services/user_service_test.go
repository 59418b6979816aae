package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
	"github.com/mtaa-app/mtaa-backend/pkg/utils"
)

type fakeCredentialStore struct {
	users map[string]*models.User
}

func (s *fakeCredentialStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	u, ok := s.users[identifier]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func TestVerifyPassword(t *testing.T) {
	hash, err := utils.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	userID := uuid.New()
	store := &fakeCredentialStore{users: map[string]*models.User{
		"jane@example.com": {ID: userID, PasswordHash: hash, IsActive: true},
		"dormant@example.com": {ID: uuid.New(), PasswordHash: hash, IsActive: false},
		"otp-only@example.com": {ID: uuid.New(), IsActive: true},
	}}
	v := NewCredentialVerifier(store)
	ctx := context.Background()

	got, err := v.VerifyPassword(ctx, "jane@example.com", "correct horse")
	if err != nil {
		t.Fatalf("VerifyPassword: %v", err)
	}
	if got != userID {
		t.Fatalf("user id mismatch: got %s want %s", got, userID)
	}

	cases := []struct {
		name       string
		identifier string
		password   string
	}{
		{"wrong password", "jane@example.com", "wrong"},
		{"unknown identifier", "nobody@example.com", "correct horse"},
		{"deactivated account", "dormant@example.com", "correct horse"},
		{"passwordless account", "otp-only@example.com", "correct horse"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := v.VerifyPassword(ctx, tc.identifier, tc.password)
			if !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
			if id != uuid.Nil {
				t.Fatal("user id leaked on failure")
			}
		})
	}
}
