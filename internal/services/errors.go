package services

import "errors"

// Failure taxonomy for the identity and session core. Every failure is
// scoped to a single request; handlers map these onto HTTP statuses.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrOTPInvalid         = errors.New("invalid verification code")
	ErrOTPExpired         = errors.New("verification code expired")
	ErrOTPExhausted       = errors.New("too many verification attempts")
	ErrTokenInvalid       = errors.New("invalid refresh token")
	ErrTokenExpired       = errors.New("refresh token expired")
	ErrTokenReused        = errors.New("refresh token reuse detected")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
)
