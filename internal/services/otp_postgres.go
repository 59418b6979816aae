package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// PostgresOTPStore persists one-time codes in the otp_codes table.
type PostgresOTPStore struct {
	DB *sql.DB
}

func NewPostgresOTPStore(db *sql.DB) *PostgresOTPStore {
	return &PostgresOTPStore{DB: db}
}

func (s *PostgresOTPStore) ActiveCode(ctx context.Context, identity, purpose string) (*models.OneTimeCode, error) {
	var code models.OneTimeCode
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, identity, purpose, code, attempts, consumed, created_at, expires_at
		FROM otp_codes
		WHERE identity = $1 AND purpose = $2 AND consumed = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`, identity, purpose).Scan(
		&code.ID, &code.Identity, &code.Purpose, &code.Code,
		&code.Attempts, &code.Consumed, &code.CreatedAt, &code.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &code, nil
}

func (s *PostgresOTPStore) InvalidateActive(ctx context.Context, identity, purpose string) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE otp_codes SET consumed = TRUE
		WHERE identity = $1 AND purpose = $2 AND consumed = FALSE
	`, identity, purpose)
	return err
}

func (s *PostgresOTPStore) Create(ctx context.Context, code *models.OneTimeCode) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO otp_codes (id, identity, purpose, code, attempts, consumed, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, code.ID, code.Identity, code.Purpose, code.Code, code.Attempts, code.Consumed, code.CreatedAt, code.ExpiresAt)
	return err
}

func (s *PostgresOTPStore) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := s.DB.QueryRowContext(ctx, `
		UPDATE otp_codes SET attempts = attempts + 1 WHERE id = $1
		RETURNING attempts
	`, id).Scan(&attempts)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return attempts, err
}

func (s *PostgresOTPStore) MarkConsumed(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE otp_codes SET consumed = TRUE WHERE id = $1
	`, id)
	return err
}
