package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/config"
	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/middleware"
	"github.com/mtaa-app/mtaa-backend/internal/models"
	"github.com/mtaa-app/mtaa-backend/internal/services"
	"github.com/mtaa-app/mtaa-backend/internal/validation"
	"github.com/mtaa-app/mtaa-backend/pkg/utils"
)

// Package-level collaborators, wired once from main.
var (
	cfg       *config.Config
	userStore *services.PostgresUserStore
	verifier  *services.CredentialVerifier
	otps      *services.OTPService
	tokens    *services.TokenService
)

// InitServices wires the identity and session services. Call after the
// databases are connected.
func InitServices(c *config.Config) {
	cfg = c
	userStore = services.NewPostgresUserStore(database.PostgresDB)
	verifier = services.NewCredentialVerifier(userStore)
	otps = services.NewOTPService(
		services.NewPostgresOTPStore(database.PostgresDB),
		services.NewOTPSender(c),
		c.OTPTTL,
		c.OTPMaxAttempts,
	)
	tokens = services.NewTokenService(
		services.NewPostgresTokenStore(database.PostgresDB),
		c.JWTSecret,
		c.AccessTokenTTL,
		c.RefreshTokenTTL,
	)
}

// TokenService exposes the token service for route middleware wiring.
func TokenService() *services.TokenService {
	return tokens
}

type RegisterRequest struct {
	Username       string `json:"username" validate:"required,min=3,max=30"`
	Email          string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber    string `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Password       string `json:"password" validate:"required,min=6"`
	DisplayName    string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Language       string `json:"language,omitempty" validate:"omitempty,oneof=en sw"`
	NeighborhoodID string `json:"neighborhood_id,omitempty" validate:"omitempty,uuid"`
}

type LoginRequest struct {
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Password    string `json:"password,omitempty" validate:"omitempty,min=6"`
}

type VerifyOTPRequest struct {
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,e164"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
}

type ResendOTPRequest struct {
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber string `json:"phone_number,omitempty" validate:"omitempty,e164"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// otpPurposeFor picks the code purpose for an account's current flow.
// Unverified accounts are still completing registration, whatever
// endpoint they arrive through, so issue and verify must agree on this.
func otpPurposeFor(user *models.User) string {
	if user.VerificationStatus != models.VerificationVerified {
		return models.OTPPurposeRegistration
	}
	return models.OTPPurposeLogin
}

// identifierOf enforces the exactly-one-of rule and returns the single
// present identifier.
func identifierOf(w http.ResponseWriter, email, phone string) (string, bool) {
	if err := validation.ExactlyOne(map[string]string{
		"email":        email,
		"phone_number": phone,
	}); err != nil {
		writeValidationError(w, err)
		return "", false
	}
	if email != "" {
		return strings.ToLower(strings.TrimSpace(email)), true
	}
	return strings.TrimSpace(phone), true
}

// Register creates a PENDING account and issues a registration OTP to
// the supplied channel.
func Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identity, ok := identifierOf(w, req.Email, req.PhoneNumber)
	if !ok {
		return
	}

	hashed, err := utils.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	displayName := req.DisplayName
	if displayName == "" {
		displayName = req.Username
	}
	language := req.Language
	if language == "" {
		language = "en"
	}

	user := &models.User{
		ID:                 uuid.New(),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
		Username:           strings.ToLower(strings.TrimSpace(req.Username)),
		Email:              req.Email,
		PhoneNumber:        req.PhoneNumber,
		PasswordHash:       hashed,
		DisplayName:        displayName,
		Language:           language,
		VerificationStatus: models.VerificationPending,
		IsActive:           true,
	}
	if req.NeighborhoodID != "" {
		nid, err := uuid.Parse(req.NeighborhoodID)
		if err == nil {
			user.NeighborhoodID = &nid
		}
	}

	if err := userStore.Create(r.Context(), user); err != nil {
		if errors.Is(err, services.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "An account with this username, email or phone already exists")
			return
		}
		log.Printf("register: create user: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create account")
		return
	}

	message := "Account created. A verification code has been sent."
	if _, err := otps.Issue(r.Context(), identity, models.OTPPurposeRegistration); err != nil {
		if errors.Is(err, services.ErrOTPDeliveryFailed) {
			// Code is persisted and stays valid; the client may resend.
			message = "Account created, but the verification code could not be delivered. Please request a new code."
		} else {
			log.Printf("register: issue otp: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to issue verification code")
			return
		}
	}

	writeJSON(w, http.StatusCreated, APIResponse{Success: true, Message: message, Data: user})
}

// Login authenticates with a password, or, when no password is given,
// starts the OTP login flow. Unverified accounts are pushed to the OTP
// flow even with a correct password.
func Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identity, ok := identifierOf(w, req.Email, req.PhoneNumber)
	if !ok {
		return
	}

	// No password: OTP login. The response never reveals whether the
	// account exists.
	if req.Password == "" {
		if user, err := userStore.FindByIdentifier(r.Context(), identity); err == nil && user.IsActive {
			if _, err := otps.Issue(r.Context(), identity, otpPurposeFor(user)); err != nil && !errors.Is(err, services.ErrOTPDeliveryFailed) {
				log.Printf("login: issue otp: %v", err)
			}
		}
		writeMessage(w, http.StatusOK, "If the account exists, a login code has been sent.")
		return
	}

	userID, err := verifier.VerifyPassword(r.Context(), identity, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		log.Printf("login: verify password: %v", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	user, err := userStore.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	if user.VerificationStatus != models.VerificationVerified {
		if _, err := otps.Issue(r.Context(), identity, models.OTPPurposeRegistration); err != nil && !errors.Is(err, services.ErrOTPDeliveryFailed) {
			log.Printf("login: issue verification otp: %v", err)
		}
		writeJSON(w, http.StatusForbidden, APIResponse{
			Success: false,
			Message: "Account not verified. A verification code has been sent.",
			Data:    map[string]bool{"otp_required": true},
		})
		return
	}

	pair, err := tokens.Issue(r.Context(), userID)
	if err != nil {
		log.Printf("login: issue tokens: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue tokens")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Login successful",
		Data:    map[string]interface{}{"user": user, "tokens": pair},
	})
}

// VerifyOTP consumes a code and hands back a token pair. A registration
// code additionally flips the account to VERIFIED.
func VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identity, ok := identifierOf(w, req.Email, req.PhoneNumber)
	if !ok {
		return
	}

	user, err := userStore.FindByIdentifier(r.Context(), identity)
	if err != nil || !user.IsActive {
		// Same response as a wrong code to avoid account enumeration.
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}

	purpose := otpPurposeFor(user)

	if err := otps.Verify(r.Context(), identity, purpose, req.Code); err != nil {
		switch {
		case errors.Is(err, services.ErrOTPExpired):
			writeError(w, http.StatusUnauthorized, "Verification code expired")
		case errors.Is(err, services.ErrOTPExhausted):
			writeError(w, http.StatusUnauthorized, "Too many attempts. Request a new code.")
		case errors.Is(err, services.ErrOTPInvalid):
			writeError(w, http.StatusUnauthorized, "Invalid verification code")
		default:
			log.Printf("verify-otp: %v", err)
			writeError(w, http.StatusInternalServerError, "Verification failed")
		}
		return
	}

	if purpose == models.OTPPurposeRegistration {
		if err := userStore.MarkVerified(r.Context(), user.ID); err != nil {
			log.Printf("verify-otp: mark verified: %v", err)
		}
		user.VerificationStatus = models.VerificationVerified
	}

	pair, err := tokens.Issue(r.Context(), user.ID)
	if err != nil {
		log.Printf("verify-otp: issue tokens: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue tokens")
		return
	}

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Message: "Verification successful",
		Data:    map[string]interface{}{"user": user, "tokens": pair},
	})
}

// ResendOTP re-issues a code for the account's current flow, behind a
// per-identity cooldown.
func ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req ResendOTPRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	identity, ok := identifierOf(w, req.Email, req.PhoneNumber)
	if !ok {
		return
	}

	// Generic response regardless of account existence.
	genericMsg := "If the account exists, a new code has been sent."

	user, err := userStore.FindByIdentifier(r.Context(), identity)
	if err != nil || !user.IsActive {
		writeMessage(w, http.StatusOK, genericMsg)
		return
	}

	purpose := otpPurposeFor(user)

	if !services.OTPResendAllowed(r.Context(), identity, purpose, cfg.OTPResendWait) {
		writeError(w, http.StatusTooManyRequests, "Please wait before requesting a new code")
		return
	}

	if _, err := otps.Issue(r.Context(), identity, purpose); err != nil && !errors.Is(err, services.ErrOTPDeliveryFailed) {
		log.Printf("resend-otp: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to issue verification code")
		return
	}

	writeMessage(w, http.StatusOK, genericMsg)
}

// RefreshToken rotates a refresh token. A reused (already rotated)
// token revokes its whole family and forces re-authentication.
func RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	pair, err := tokens.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenReused):
			writeError(w, http.StatusUnauthorized, "Refresh token reuse detected. All sessions for this login have been revoked.")
		case errors.Is(err, services.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "Refresh token expired. Please log in again.")
		case errors.Is(err, services.ErrTokenInvalid):
			writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		default:
			log.Printf("refresh-token: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to refresh token")
		}
		return
	}

	writeData(w, http.StatusOK, pair)
}

// Logout revokes the presented refresh token. Other sessions stay
// active.
func Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	if err := tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		log.Printf("logout: %v", err)
		writeError(w, http.StatusInternalServerError, "Logout failed")
		return
	}
	writeMessage(w, http.StatusOK, "Logged out")
}

// LogoutAll revokes every refresh token for the authenticated user
// (logout everywhere).
func LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := tokens.RevokeAll(r.Context(), userID); err != nil {
		log.Printf("logout-all: %v", err)
		writeError(w, http.StatusInternalServerError, "Logout failed")
		return
	}
	writeMessage(w, http.StatusOK, "All sessions revoked")
}
