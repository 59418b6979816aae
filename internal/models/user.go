package models

import (
	"time"

	"github.com/google/uuid"
)

// Verification states for a user account.
const (
	VerificationPending  = "PENDING"
	VerificationVerified = "VERIFIED"
	VerificationRejected = "REJECTED"
)

type User struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	PasswordHash string `json:"-"` // Never returned in JSON

	DisplayName    string     `json:"display_name"`
	Bio            string     `json:"bio,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	Language       string     `json:"language"`
	MpesaNumber    string     `json:"mpesa_number,omitempty"`
	NeighborhoodID *uuid.UUID `json:"neighborhood_id,omitempty"`

	VerificationStatus string `json:"verification_status"`
	TrustedMember      bool   `json:"trusted_member"`
	IsActive           bool   `json:"is_active"`
}
