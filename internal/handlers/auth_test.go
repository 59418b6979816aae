package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
	"github.com/mtaa-app/mtaa-backend/internal/services"
)

type memOTPStore struct {
	codes []*models.OneTimeCode
}

func (s *memOTPStore) ActiveCode(ctx context.Context, identity, purpose string) (*models.OneTimeCode, error) {
	for i := len(s.codes) - 1; i >= 0; i-- {
		c := s.codes[i]
		if c.Identity == identity && c.Purpose == purpose && !c.Consumed {
			return c, nil
		}
	}
	return nil, services.ErrNotFound
}

func (s *memOTPStore) InvalidateActive(ctx context.Context, identity, purpose string) error {
	for _, c := range s.codes {
		if c.Identity == identity && c.Purpose == purpose {
			c.Consumed = true
		}
	}
	return nil
}

func (s *memOTPStore) Create(ctx context.Context, code *models.OneTimeCode) error {
	cp := *code
	s.codes = append(s.codes, &cp)
	return nil
}

func (s *memOTPStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	for _, c := range s.codes {
		if c.ID == id {
			c.Attempts++
			return c.Attempts, nil
		}
	}
	return 0, services.ErrNotFound
}

func (s *memOTPStore) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	for _, c := range s.codes {
		if c.ID == id {
			c.Consumed = true
			return nil
		}
	}
	return services.ErrNotFound
}

type silentSender struct{}

func (silentSender) SendOTP(ctx context.Context, identity, purpose, code string) error { return nil }

func TestOTPPurposeFollowsVerificationStatus(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{models.VerificationPending, models.OTPPurposeRegistration},
		{models.VerificationRejected, models.OTPPurposeRegistration},
		{models.VerificationVerified, models.OTPPurposeLogin},
	}
	for _, tc := range cases {
		user := &models.User{VerificationStatus: tc.status}
		if got := otpPurposeFor(user); got != tc.want {
			t.Errorf("status %s: got purpose %q, want %q", tc.status, got, tc.want)
		}
	}
}

// An unverified account requesting a passwordless login code must get a
// code that the verify endpoint's purpose lookup can actually find.
func TestUnverifiedPasswordlessLoginCodeVerifies(t *testing.T) {
	svc := services.NewOTPService(&memOTPStore{}, silentSender{}, 10*time.Minute, 5)
	ctx := context.Background()

	user := &models.User{
		VerificationStatus: models.VerificationPending,
		IsActive:           true,
	}

	// Issue the way the login endpoint does, verify the way the
	// verify-otp endpoint does. Both sides must select the same purpose.
	record, err := svc.Issue(ctx, "jane@example.com", otpPurposeFor(user))
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := svc.Verify(ctx, "jane@example.com", otpPurposeFor(user), record.Code); err != nil {
		t.Fatalf("code issued at login did not verify: %v", err)
	}
}
