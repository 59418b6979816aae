package handlers

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/middleware"
	"github.com/mtaa-app/mtaa-backend/internal/models"
)

type CreateListingRequest struct {
	NeighborhoodID string  `json:"neighborhood_id" validate:"required,uuid"`
	Title          string  `json:"title" validate:"required,max=200"`
	Description    string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	PriceKES       float64 `json:"price_kes" validate:"gte=0"`
	Category       string  `json:"category,omitempty" validate:"omitempty,max=50"`
	ImageURL       string  `json:"image_url,omitempty" validate:"omitempty,url"`
}

type UpdateListingRequest struct {
	Title       *string  `json:"title,omitempty" validate:"omitempty,max=200"`
	Description *string  `json:"description,omitempty" validate:"omitempty,max=5000"`
	PriceKES    *float64 `json:"price_kes,omitempty" validate:"omitempty,gte=0"`
	Category    *string  `json:"category,omitempty" validate:"omitempty,max=50"`
	ImageURL    *string  `json:"image_url,omitempty" validate:"omitempty,url"`
	Status      *string  `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE SOLD CLOSED"`
}

// CreateListing publishes a marketplace listing.
func CreateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req CreateListingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	neighborhoodID, _ := uuid.Parse(req.NeighborhoodID)
	category := req.Category
	if category == "" {
		category = "general"
	}

	listing := models.Listing{
		ID:             uuid.New(),
		UserID:         userID,
		NeighborhoodID: neighborhoodID,
		Title:          req.Title,
		Description:    req.Description,
		PriceKES:       req.PriceKES,
		Category:       category,
		ImageURL:       req.ImageURL,
		Status:         models.ListingActive,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	_, err := database.PostgresDB.ExecContext(r.Context(), `
		INSERT INTO listings (id, user_id, neighborhood_id, title, description, price_kes, category, image_url, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, NULLIF($8, ''), $9, $10, $11)
	`, listing.ID, listing.UserID, listing.NeighborhoodID, listing.Title, listing.Description,
		listing.PriceKES, listing.Category, listing.ImageURL, listing.Status, listing.CreatedAt, listing.UpdatedAt)
	if err != nil {
		log.Printf("create listing: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create listing")
		return
	}

	writeData(w, http.StatusCreated, listing)
}

// ListListings returns active listings, filterable by neighborhood and
// category.
func ListListings(w http.ResponseWriter, r *http.Request) {
	query := `
		SELECT id, user_id, neighborhood_id, title, description, price_kes, category, image_url, status, created_at, updated_at
		FROM listings
		WHERE status = 'ACTIVE'`
	args := []interface{}{}

	if nid := r.URL.Query().Get("neighborhood_id"); nid != "" {
		id, err := uuid.Parse(nid)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid neighborhood id")
			return
		}
		args = append(args, id)
		query += " AND neighborhood_id = $1"
	}
	if category := r.URL.Query().Get("category"); category != "" {
		args = append(args, category)
		query += " AND category = $" + itoa(len(args))
	}
	query += " ORDER BY created_at DESC"
	args = append(args, parseLimit(r.URL.Query().Get("limit"), 20, 100))
	query += " LIMIT $" + itoa(len(args))
	args = append(args, parseOffset(r.URL.Query().Get("offset")))
	query += " OFFSET $" + itoa(len(args))

	rows, err := database.PostgresDB.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("list listings: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list listings")
		return
	}
	defer rows.Close()

	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			log.Printf("list listings: scan: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list listings")
			return
		}
		listings = append(listings, *l)
	}

	writeData(w, http.StatusOK, listings)
}

// GetListing fetches one listing regardless of status.
func GetListing(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	row := database.PostgresDB.QueryRowContext(r.Context(), `
		SELECT id, user_id, neighborhood_id, title, description, price_kes, category, image_url, status, created_at, updated_at
		FROM listings WHERE id = $1
	`, id)

	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	if err != nil {
		log.Printf("get listing: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load listing")
		return
	}

	writeData(w, http.StatusOK, l)
}

// UpdateListing lets the owner edit fields or change status.
func UpdateListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	var req UpdateListingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := database.PostgresDB.ExecContext(r.Context(), `
		UPDATE listings SET
			title = COALESCE($1, title),
			description = COALESCE($2, description),
			price_kes = COALESCE($3, price_kes),
			category = COALESCE($4, category),
			image_url = COALESCE($5, image_url),
			status = COALESCE($6, status),
			updated_at = $7
		WHERE id = $8 AND user_id = $9
	`, req.Title, req.Description, req.PriceKES, req.Category, req.ImageURL, req.Status, time.Now(), id, userID)
	if err != nil {
		log.Printf("update listing: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update listing")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}

	writeMessage(w, http.StatusOK, "Listing updated")
}

// DeleteListing closes a listing (soft removal via status).
func DeleteListing(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	res, err := database.PostgresDB.ExecContext(r.Context(), `
		UPDATE listings SET status = 'CLOSED', updated_at = $1
		WHERE id = $2 AND user_id = $3
	`, time.Now(), id, userID)
	if err != nil {
		log.Printf("delete listing: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to close listing")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}

	writeMessage(w, http.StatusOK, "Listing closed")
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	var description, imageURL sql.NullString
	err := row.Scan(&l.ID, &l.UserID, &l.NeighborhoodID, &l.Title, &description,
		&l.PriceKES, &l.Category, &imageURL, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Description = description.String
	l.ImageURL = imageURL.String
	return &l, nil
}
