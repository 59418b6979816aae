package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
)

type fakeOTPStore struct {
	codes []*models.OneTimeCode
}

func (s *fakeOTPStore) ActiveCode(ctx context.Context, identity, purpose string) (*models.OneTimeCode, error) {
	for i := len(s.codes) - 1; i >= 0; i-- {
		c := s.codes[i]
		if c.Identity == identity && c.Purpose == purpose && !c.Consumed {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeOTPStore) InvalidateActive(ctx context.Context, identity, purpose string) error {
	for _, c := range s.codes {
		if c.Identity == identity && c.Purpose == purpose {
			c.Consumed = true
		}
	}
	return nil
}

func (s *fakeOTPStore) Create(ctx context.Context, code *models.OneTimeCode) error {
	cp := *code
	s.codes = append(s.codes, &cp)
	return nil
}

func (s *fakeOTPStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	for _, c := range s.codes {
		if c.ID == id {
			c.Attempts++
			return c.Attempts, nil
		}
	}
	return 0, ErrNotFound
}

func (s *fakeOTPStore) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	for _, c := range s.codes {
		if c.ID == id {
			c.Consumed = true
			return nil
		}
	}
	return ErrNotFound
}

type fakeSender struct {
	sent []string
	fail bool
}

func (s *fakeSender) SendOTP(ctx context.Context, identity, purpose, code string) error {
	if s.fail {
		return errors.New("smtp unreachable")
	}
	s.sent = append(s.sent, code)
	return nil
}

func newTestOTPService(store *fakeOTPStore, sender *fakeSender) *OTPService {
	return NewOTPService(store, sender, 10*time.Minute, 5)
}

func TestOTPIssueAndVerify(t *testing.T) {
	store := &fakeOTPStore{}
	sender := &fakeSender{}
	svc := newTestOTPService(store, sender)
	ctx := context.Background()

	record, err := svc.Issue(ctx, "jane@example.com", models.OTPPurposeLogin)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(record.Code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", record.Code)
	}
	if len(sender.sent) != 1 || sender.sent[0] != record.Code {
		t.Fatalf("code was not delivered")
	}

	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, record.Code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestOTPSingleUse(t *testing.T) {
	store := &fakeOTPStore{}
	svc := newTestOTPService(store, &fakeSender{})
	ctx := context.Background()

	record, _ := svc.Issue(ctx, "jane@example.com", models.OTPPurposeLogin)
	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, record.Code); err != nil {
		t.Fatalf("first verify: %v", err)
	}
	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, record.Code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("second verify should fail with ErrOTPInvalid, got %v", err)
	}
}

func TestOTPReissueSupersedes(t *testing.T) {
	store := &fakeOTPStore{}
	svc := newTestOTPService(store, &fakeSender{})
	ctx := context.Background()

	first, _ := svc.Issue(ctx, "jane@example.com", models.OTPPurposeLogin)
	second, _ := svc.Issue(ctx, "jane@example.com", models.OTPPurposeLogin)

	if first.Code != second.Code {
		if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, first.Code); !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("superseded code should be invalid, got %v", err)
		}
	}
	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, second.Code); err != nil {
		t.Fatalf("latest code should verify: %v", err)
	}
}

func TestOTPExpiry(t *testing.T) {
	store := &fakeOTPStore{}
	svc := newTestOTPService(store, &fakeSender{})
	ctx := context.Background()

	record, _ := svc.Issue(ctx, "jane@example.com", models.OTPPurposeLogin)

	svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, record.Code); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestOTPExhaustion(t *testing.T) {
	store := &fakeOTPStore{}
	svc := newTestOTPService(store, &fakeSender{})
	ctx := context.Background()

	record, _ := svc.Issue(ctx, "jane@example.com", models.OTPPurposeLogin)

	wrong := "000000"
	if wrong == record.Code {
		wrong = "000001"
	}
	for i := 0; i < 5; i++ {
		if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, wrong); !errors.Is(err, ErrOTPInvalid) {
			t.Fatalf("attempt %d: expected ErrOTPInvalid, got %v", i+1, err)
		}
	}

	// The correct code no longer works once attempts are used up.
	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, record.Code); !errors.Is(err, ErrOTPExhausted) {
		t.Fatalf("expected ErrOTPExhausted, got %v", err)
	}
}

func TestOTPPurposeIsolation(t *testing.T) {
	store := &fakeOTPStore{}
	svc := newTestOTPService(store, &fakeSender{})
	ctx := context.Background()

	record, _ := svc.Issue(ctx, "jane@example.com", models.OTPPurposeRegistration)

	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, record.Code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("registration code should not verify a login, got %v", err)
	}
}

func TestOTPDeliveryFailureKeepsCodeValid(t *testing.T) {
	store := &fakeOTPStore{}
	svc := newTestOTPService(store, &fakeSender{fail: true})
	ctx := context.Background()

	record, err := svc.Issue(ctx, "jane@example.com", models.OTPPurposeLogin)
	if !errors.Is(err, ErrOTPDeliveryFailed) {
		t.Fatalf("expected ErrOTPDeliveryFailed, got %v", err)
	}
	if record == nil {
		t.Fatal("record should be returned despite delivery failure")
	}
	if err := svc.Verify(ctx, "jane@example.com", models.OTPPurposeLogin, record.Code); err != nil {
		t.Fatalf("code should stay valid after delivery failure: %v", err)
	}
}

func TestGenerateOTPCodeFormat(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateOTPCode()
		if err != nil {
			t.Fatalf("GenerateOTPCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("expected 6 digits, got %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}
