package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL and bootstraps the schema.
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Neighborhoods table (read-mostly reference data, seeded at startup)
		`CREATE TABLE IF NOT EXISTS neighborhoods (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name VARCHAR(100) NOT NULL,
			city VARCHAR(100) NOT NULL,
			county VARCHAR(100),
			description TEXT,
			center_lat DOUBLE PRECISION,
			center_lng DOUBLE PRECISION,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
			UNIQUE(name, city)
		)`,

		// Users table. email/phone are nullable: an account carries at least
		// one of them, enforced at the request boundary.
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			username VARCHAR(30) NOT NULL UNIQUE,
			email VARCHAR(255) UNIQUE,
			phone_number VARCHAR(20) UNIQUE,
			password_hash VARCHAR(255),
			display_name VARCHAR(100) NOT NULL DEFAULT '',
			bio TEXT,
			avatar_url TEXT,
			language VARCHAR(10) NOT NULL DEFAULT 'en',
			mpesa_number VARCHAR(20),
			neighborhood_id UUID REFERENCES neighborhoods(id) ON DELETE SET NULL,
			verification_status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			trusted_member BOOLEAN NOT NULL DEFAULT FALSE,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// One-time codes: at most one live code per (identity, purpose);
		// issuing a new code marks older unconsumed ones consumed.
		`CREATE TABLE IF NOT EXISTS otp_codes (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			identity VARCHAR(255) NOT NULL,
			purpose VARCHAR(20) NOT NULL,
			code VARCHAR(6) NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			consumed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			expires_at TIMESTAMP NOT NULL
		)`,

		// Refresh tokens, stored as SHA-256 hashes. family_id groups tokens
		// descended from one login so reuse can revoke the whole lineage.
		`CREATE TABLE IF NOT EXISTS refresh_tokens (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			family_id UUID NOT NULL,
			token_hash VARCHAR(64) NOT NULL UNIQUE,
			expires_at TIMESTAMP NOT NULL,
			revoked BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Posts (neighborhood feed)
		`CREATE TABLE IF NOT EXISTS posts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			neighborhood_id UUID NOT NULL REFERENCES neighborhoods(id) ON DELETE CASCADE,
			body TEXT NOT NULL,
			image_url TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Marketplace listings
		`CREATE TABLE IF NOT EXISTS listings (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			neighborhood_id UUID NOT NULL REFERENCES neighborhoods(id) ON DELETE CASCADE,
			title VARCHAR(200) NOT NULL,
			description TEXT,
			price_kes NUMERIC(12,2) NOT NULL DEFAULT 0,
			category VARCHAR(50) NOT NULL DEFAULT 'general',
			image_url TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'ACTIVE',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Bookings against listings
		`CREATE TABLE IF NOT EXISTS bookings (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			listing_id UUID NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			scheduled_for TIMESTAMP NOT NULL,
			note TEXT,
			status VARCHAR(20) NOT NULL DEFAULT 'PENDING',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Notifications
		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			kind VARCHAR(50) NOT NULL,
			body TEXT NOT NULL,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
		`CREATE INDEX IF NOT EXISTS idx_users_phone_number ON users(phone_number)`,
		`CREATE INDEX IF NOT EXISTS idx_users_neighborhood_id ON users(neighborhood_id)`,
		`CREATE INDEX IF NOT EXISTS idx_neighborhoods_city ON neighborhoods(city)`,
		`CREATE INDEX IF NOT EXISTS idx_neighborhoods_is_active ON neighborhoods(is_active)`,
		`CREATE INDEX IF NOT EXISTS idx_otp_codes_identity_purpose ON otp_codes(identity, purpose)`,
		`CREATE INDEX IF NOT EXISTS idx_otp_codes_expires_at ON otp_codes(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_user_id ON refresh_tokens(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_family_id ON refresh_tokens(family_id)`,
		`CREATE INDEX IF NOT EXISTS idx_refresh_tokens_token_hash ON refresh_tokens(token_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_neighborhood_id ON posts(neighborhood_id)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_neighborhood_id ON listings(neighborhood_id)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_listings_category ON listings(category)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_listing_id ON bookings(listing_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_id ON notifications(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_read ON notifications(read)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
