package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
	"github.com/mtaa-app/mtaa-backend/pkg/utils"
)

// CredentialStore is the persistence collaborator for password checks.
type CredentialStore interface {
	// FindByIdentifier looks a user up by email or phone number.
	// Returns ErrNotFound when no account matches.
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

// CredentialVerifier validates an identifier/password pair against the
// stored hash. Unknown identifiers and wrong passwords are
// indistinguishable to the caller.
type CredentialVerifier struct {
	store CredentialStore
}

func NewCredentialVerifier(store CredentialStore) *CredentialVerifier {
	return &CredentialVerifier{store: store}
}

// decoyHash is a throwaway Argon2id hash compared against when the
// identifier is unknown, so both failure paths cost one hash check.
var decoyHash string

func init() {
	decoyHash, _ = utils.HashPassword(uuid.New().String())
}

// VerifyPassword returns the user id when the password matches, and
// ErrInvalidCredentials for unknown identifiers, wrong passwords,
// passwordless accounts, and deactivated accounts alike.
func (v *CredentialVerifier) VerifyPassword(ctx context.Context, identifier, password string) (uuid.UUID, error) {
	user, err := v.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			utils.VerifyPassword(password, decoyHash)
			return uuid.Nil, ErrInvalidCredentials
		}
		return uuid.Nil, err
	}

	if !user.IsActive || user.PasswordHash == "" {
		utils.VerifyPassword(password, decoyHash)
		return uuid.Nil, ErrInvalidCredentials
	}

	ok, err := utils.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return uuid.Nil, ErrInvalidCredentials
	}
	return user.ID, nil
}
