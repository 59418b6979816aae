package models

import (
	"time"

	"github.com/google/uuid"
)

// OTP purposes. A code issued for one purpose cannot verify another.
const (
	OTPPurposeRegistration = "registration"
	OTPPurposeLogin        = "login"
)

// OneTimeCode is an ephemeral 6-digit code bound to an identity
// (email or phone) and a purpose. Single-use: consumed on successful
// verification, superseded when a newer code is issued for the same
// (identity, purpose) pair.
type OneTimeCode struct {
	ID        uuid.UUID
	Identity  string
	Purpose   string
	Code      string
	Attempts  int
	Consumed  bool
	CreatedAt time.Time
	ExpiresAt time.Time
}
