package services

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// PostgresTokenStore persists refresh tokens in the refresh_tokens table.
type PostgresTokenStore struct {
	DB *sql.DB
}

func NewPostgresTokenStore(db *sql.DB) *PostgresTokenStore {
	return &PostgresTokenStore{DB: db}
}

func (s *PostgresTokenStore) Create(ctx context.Context, token *models.RefreshToken) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, expires_at, revoked, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, token.ID, token.UserID, token.FamilyID, token.TokenHash, token.ExpiresAt, token.Revoked, token.CreatedAt)
	return err
}

func (s *PostgresTokenStore) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var token models.RefreshToken
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, user_id, family_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens WHERE token_hash = $1
	`, hash).Scan(
		&token.ID, &token.UserID, &token.FamilyID, &token.TokenHash,
		&token.ExpiresAt, &token.Revoked, &token.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

// RevokeByHash is a single conditional UPDATE, so of two concurrent
// rotations exactly one observes rows-affected == 1.
func (s *PostgresTokenStore) RevokeByHash(ctx context.Context, hash string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE
		WHERE token_hash = $1 AND revoked = FALSE
	`, hash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PostgresTokenStore) RevokeFamily(ctx context.Context, familyID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE family_id = $1
	`, familyID)
	return err
}

func (s *PostgresTokenStore) RevokeAllForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1
	`, userID)
	return err
}
