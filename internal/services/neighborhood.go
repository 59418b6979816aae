package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// ListNeighborhoods returns active neighborhoods, optionally filtered by
// city and a case-insensitive name search, ordered by city then name.
// Unfiltered listings are served from the Redis cache when possible.
func ListNeighborhoods(ctx context.Context, city, search string) ([]models.Neighborhood, error) {
	city = strings.TrimSpace(city)
	search = strings.TrimSpace(search)

	cacheKey := neighborhoodCacheKey(city, search)
	var cached []models.Neighborhood
	if hit, _ := Cache.Get(ctx, cacheKey, &cached); hit {
		return cached, nil
	}

	query := `
		SELECT id, name, city, county, description, center_lat, center_lng, is_active, created_at, updated_at
		FROM neighborhoods
		WHERE is_active = TRUE`
	args := []interface{}{}

	if city != "" {
		args = append(args, city)
		query += fmt.Sprintf(" AND LOWER(city) = LOWER($%d)", len(args))
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	query += " ORDER BY city ASC, name ASC"

	rows, err := database.PostgresDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	neighborhoods := []models.Neighborhood{}
	for rows.Next() {
		n, err := scanNeighborhoodRow(rows)
		if err != nil {
			return nil, err
		}
		neighborhoods = append(neighborhoods, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	_ = Cache.SetWithTTL(ctx, cacheKey, neighborhoods, DefaultCacheTTL)
	return neighborhoods, nil
}

// GetNeighborhood fetches a single neighborhood by id; ErrNotFound when
// absent or inactive.
func GetNeighborhood(ctx context.Context, id uuid.UUID) (*models.Neighborhood, error) {
	row := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, name, city, county, description, center_lat, center_lng, is_active, created_at, updated_at
		FROM neighborhoods
		WHERE id = $1 AND is_active = TRUE
	`, id)

	var n models.Neighborhood
	var county, description sql.NullString
	var lat, lng sql.NullFloat64
	err := row.Scan(&n.ID, &n.Name, &n.City, &county, &description, &lat, &lng, &n.IsActive, &n.CreatedAt, &n.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.County = county.String
	n.Description = description.String
	if lat.Valid {
		n.CenterLat = &lat.Float64
	}
	if lng.Valid {
		n.CenterLng = &lng.Float64
	}
	return &n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNeighborhoodRow(row rowScanner) (*models.Neighborhood, error) {
	var n models.Neighborhood
	var county, description sql.NullString
	var lat, lng sql.NullFloat64
	if err := row.Scan(&n.ID, &n.Name, &n.City, &county, &description, &lat, &lng, &n.IsActive, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	n.County = county.String
	n.Description = description.String
	if lat.Valid {
		n.CenterLat = &lat.Float64
	}
	if lng.Valid {
		n.CenterLng = &lng.Float64
	}
	return &n, nil
}

func neighborhoodCacheKey(city, search string) string {
	return fmt.Sprintf("neighborhoods:%s:%s", strings.ToLower(city), strings.ToLower(search))
}

// seedNeighborhood is one locality from the fixed seed list.
type seedNeighborhood struct {
	Name   string
	City   string
	County string
}

var neighborhoodSeed = []seedNeighborhood{
	{"Kilimani", "Nairobi", "Nairobi"},
	{"Westlands", "Nairobi", "Nairobi"},
	{"Kasarani", "Nairobi", "Nairobi"},
	{"Kibera", "Nairobi", "Nairobi"},
	{"Lavington", "Nairobi", "Nairobi"},
	{"Parklands", "Nairobi", "Nairobi"},
	{"Embakasi", "Nairobi", "Nairobi"},
	{"Karen", "Nairobi", "Nairobi"},
	{"South B", "Nairobi", "Nairobi"},
	{"Umoja", "Nairobi", "Nairobi"},
	{"Nyali", "Mombasa", "Mombasa"},
	{"Likoni", "Mombasa", "Mombasa"},
	{"Bamburi", "Mombasa", "Mombasa"},
	{"Milimani", "Kisumu", "Kisumu"},
	{"Kondele", "Kisumu", "Kisumu"},
	{"Pipeline", "Nakuru", "Nakuru"},
	{"Section 58", "Nakuru", "Nakuru"},
	{"Kapsoya", "Eldoret", "Uasin Gishu"},
}

// SeedNeighborhoods idempotently inserts the fixed locality list
// (create-if-absent by name+city). Safe to run on every startup.
func SeedNeighborhoods(ctx context.Context) error {
	inserted := 0
	for _, s := range neighborhoodSeed {
		res, err := database.PostgresDB.ExecContext(ctx, `
			INSERT INTO neighborhoods (id, name, city, county, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, TRUE, $5, $5)
			ON CONFLICT (name, city) DO NOTHING
		`, uuid.New(), s.Name, s.City, s.County, time.Now())
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	if inserted > 0 {
		log.Printf("✅ Seeded %d neighborhoods", inserted)
	}
	return nil
}
