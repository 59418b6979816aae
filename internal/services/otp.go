package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// OTPStore is the persistence collaborator for one-time codes.
type OTPStore interface {
	// ActiveCode returns the newest unconsumed code for the pair, or
	// ErrNotFound when none exists.
	ActiveCode(ctx context.Context, identity, purpose string) (*models.OneTimeCode, error)
	// InvalidateActive marks every unconsumed code for the pair consumed.
	InvalidateActive(ctx context.Context, identity, purpose string) error
	Create(ctx context.Context, code *models.OneTimeCode) error
	// IncrementAttempts bumps the attempt counter and returns the new value.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	MarkConsumed(ctx context.Context, id uuid.UUID) error
}

// OTPSender delivers a code to the identity's channel (email or SMS).
type OTPSender interface {
	SendOTP(ctx context.Context, identity, purpose, code string) error
}

// ErrOTPDeliveryFailed wraps a delivery failure after the code was
// already persisted. The code stays valid; the caller may resend.
var ErrOTPDeliveryFailed = errors.New("verification code could not be delivered")

// OTPService issues and checks one-time codes. State machine per
// (identity, purpose): NONE → ISSUED → {CONSUMED | EXPIRED}. A consumed
// or expired code never transitions back to valid.
type OTPService struct {
	store       OTPStore
	sender      OTPSender
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewOTPService(store OTPStore, sender OTPSender, ttl time.Duration, maxAttempts int) *OTPService {
	return &OTPService{
		store:       store,
		sender:      sender,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

// GenerateOTPCode returns a uniform random 6-digit code, leading zeros
// preserved.
func GenerateOTPCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Issue generates and persists a fresh code for the pair, superseding
// any prior unconsumed code, then hands it to the delivery collaborator.
// A delivery failure is reported as ErrOTPDeliveryFailed but does not
// roll back issuance.
func (s *OTPService) Issue(ctx context.Context, identity, purpose string) (*models.OneTimeCode, error) {
	code, err := GenerateOTPCode()
	if err != nil {
		return nil, err
	}

	// Two concurrent issues resolve last-write-wins on the active code.
	if err := s.store.InvalidateActive(ctx, identity, purpose); err != nil {
		return nil, err
	}

	now := s.now()
	record := &models.OneTimeCode{
		ID:        uuid.New(),
		Identity:  identity,
		Purpose:   purpose,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}

	if err := s.sender.SendOTP(ctx, identity, purpose, code); err != nil {
		return record, fmt.Errorf("%w: %v", ErrOTPDeliveryFailed, err)
	}
	return record, nil
}

// Verify checks a submitted code against the active record for the pair.
// Expiry wins over attempt accounting; exhaustion wins over correctness.
func (s *OTPService) Verify(ctx context.Context, identity, purpose, submitted string) error {
	record, err := s.store.ActiveCode(ctx, identity, purpose)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrOTPInvalid
		}
		return err
	}

	if s.now().After(record.ExpiresAt) {
		return ErrOTPExpired
	}
	if record.Attempts >= s.maxAttempts {
		return ErrOTPExhausted
	}

	if _, err := s.store.IncrementAttempts(ctx, record.ID); err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(submitted)) != 1 {
		return ErrOTPInvalid
	}

	return s.store.MarkConsumed(ctx, record.ID)
}
