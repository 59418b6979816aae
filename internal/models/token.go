package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is the server-side record of a long-lived session
// credential. Only the SHA-256 hash of the opaque token is stored.
// FamilyID groups every token descended from one original login so that
// reuse of a rotated token can revoke the entire lineage.
type RefreshToken struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	FamilyID  uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}
