package services

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// PostgresUserStore persists user accounts.
type PostgresUserStore struct {
	DB *sql.DB
}

func NewPostgresUserStore(db *sql.DB) *PostgresUserStore {
	return &PostgresUserStore{DB: db}
}

const userColumns = `id, created_at, updated_at, username, email, phone_number, password_hash,
	display_name, bio, avatar_url, language, mpesa_number, neighborhood_id,
	verification_status, trusted_member, is_active`

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var email, phone, passwordHash, bio, avatarURL, mpesa sql.NullString
	var neighborhoodID sql.NullString

	err := row.Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Username, &email, &phone, &passwordHash,
		&u.DisplayName, &bio, &avatarURL, &u.Language, &mpesa, &neighborhoodID,
		&u.VerificationStatus, &u.TrustedMember, &u.IsActive,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	u.Email = email.String
	u.PhoneNumber = phone.String
	u.PasswordHash = passwordHash.String
	u.Bio = bio.String
	u.AvatarURL = avatarURL.String
	u.MpesaNumber = mpesa.String
	if neighborhoodID.Valid {
		if id, err := uuid.Parse(neighborhoodID.String); err == nil {
			u.NeighborhoodID = &id
		}
	}
	return &u, nil
}

// FindByIdentifier looks up a user by email (case-insensitive) or phone
// number.
func (s *PostgresUserStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	identifier = strings.TrimSpace(identifier)
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE LOWER(email) = LOWER($1) OR phone_number = $1
	`, identifier)
	return scanUser(row)
}

func (s *PostgresUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.DB.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users WHERE id = $1
	`, id)
	return scanUser(row)
}

// Create inserts a new user. A unique-constraint violation surfaces as
// ErrAlreadyExists so handlers can answer 409.
func (s *PostgresUserStore) Create(ctx context.Context, u *models.User) error {
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at, username, email, phone_number, password_hash,
			display_name, bio, avatar_url, language, mpesa_number, neighborhood_id,
			verification_status, trusted_member, is_active)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
			$8, NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14, $15, $16)
	`, u.ID, u.CreatedAt, u.UpdatedAt, u.Username, strings.ToLower(u.Email), u.PhoneNumber, u.PasswordHash,
		u.DisplayName, u.Bio, u.AvatarURL, u.Language, u.MpesaNumber, u.NeighborhoodID,
		u.VerificationStatus, u.TrustedMember, u.IsActive)
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return ErrAlreadyExists
	}
	return err
}

// MarkVerified transitions an account to VERIFIED after a successful
// OTP check.
func (s *PostgresUserStore) MarkVerified(ctx context.Context, id uuid.UUID) error {
	res, err := s.DB.ExecContext(ctx, `
		UPDATE users SET verification_status = $1, updated_at = $2 WHERE id = $3
	`, models.VerificationVerified, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies non-empty profile fields.
func (s *PostgresUserStore) UpdateProfile(ctx context.Context, id uuid.UUID, displayName, bio, avatarURL, language, mpesaNumber *string, neighborhoodID *uuid.UUID) (*models.User, error) {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE users SET
			display_name = COALESCE($1, display_name),
			bio = COALESCE($2, bio),
			avatar_url = COALESCE($3, avatar_url),
			language = COALESCE($4, language),
			mpesa_number = COALESCE($5, mpesa_number),
			neighborhood_id = COALESCE($6, neighborhood_id),
			updated_at = $7
		WHERE id = $8
	`, displayName, bio, avatarURL, language, mpesaNumber, neighborhoodID, time.Now(), id)
	if err != nil {
		return nil, err
	}
	return s.FindByID(ctx, id)
}

// Deactivate soft-deletes an account; records are never hard-deleted.
func (s *PostgresUserStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := s.DB.ExecContext(ctx, `
		UPDATE users SET is_active = FALSE, updated_at = $1 WHERE id = $2
	`, time.Now(), id)
	return err
}
