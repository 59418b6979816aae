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

type CreateBookingRequest struct {
	ListingID    string    `json:"listing_id" validate:"required,uuid"`
	ScheduledFor time.Time `json:"scheduled_for" validate:"required"`
	Note         string    `json:"note,omitempty" validate:"omitempty,max=1000"`
}

type UpdateBookingRequest struct {
	Status string `json:"status" validate:"required,oneof=CONFIRMED CANCELLED"`
}

// CreateBooking books a slot against an active listing and notifies the
// listing owner.
func CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req CreateBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	listingID, _ := uuid.Parse(req.ListingID)

	var ownerID uuid.UUID
	var title string
	err := database.PostgresDB.QueryRowContext(r.Context(), `
		SELECT user_id, title FROM listings WHERE id = $1 AND status = 'ACTIVE'
	`, listingID).Scan(&ownerID, &title)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Listing not found")
		return
	}
	if err != nil {
		log.Printf("create booking: lookup listing: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create booking")
		return
	}

	booking := models.Booking{
		ID:           uuid.New(),
		ListingID:    listingID,
		UserID:       userID,
		ScheduledFor: req.ScheduledFor,
		Note:         req.Note,
		Status:       models.BookingPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	_, err = database.PostgresDB.ExecContext(r.Context(), `
		INSERT INTO bookings (id, listing_id, user_id, scheduled_for, note, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
	`, booking.ID, booking.ListingID, booking.UserID, booking.ScheduledFor, booking.Note,
		booking.Status, booking.CreatedAt, booking.UpdatedAt)
	if err != nil {
		log.Printf("create booking: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create booking")
		return
	}

	notifyUser(r.Context(), ownerID, "booking_requested", "New booking request for \""+title+"\"")

	writeData(w, http.StatusCreated, booking)
}

// ListBookings returns bookings made by the caller, and bookings made
// against the caller's listings.
func ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	rows, err := database.PostgresDB.QueryContext(r.Context(), `
		SELECT b.id, b.listing_id, b.user_id, b.scheduled_for, b.note, b.status, b.created_at, b.updated_at
		FROM bookings b
		JOIN listings l ON l.id = b.listing_id
		WHERE b.user_id = $1 OR l.user_id = $1
		ORDER BY b.scheduled_for ASC
	`, userID)
	if err != nil {
		log.Printf("list bookings: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list bookings")
		return
	}
	defer rows.Close()

	bookings := []models.Booking{}
	for rows.Next() {
		var b models.Booking
		var note sql.NullString
		if err := rows.Scan(&b.ID, &b.ListingID, &b.UserID, &b.ScheduledFor, &note, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
			log.Printf("list bookings: scan: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list bookings")
			return
		}
		b.Note = note.String
		bookings = append(bookings, b)
	}

	writeData(w, http.StatusOK, bookings)
}

// UpdateBooking lets the listing owner confirm, or either party cancel.
func UpdateBooking(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid booking id")
		return
	}

	var req UpdateBookingRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	// Confirming is owner-only; cancelling is open to both parties.
	var res sql.Result
	if req.Status == models.BookingConfirmed {
		res, err = database.PostgresDB.ExecContext(r.Context(), `
			UPDATE bookings SET status = $1, updated_at = $2
			WHERE id = $3 AND status = 'PENDING'
			AND listing_id IN (SELECT id FROM listings WHERE user_id = $4)
		`, req.Status, time.Now(), id, userID)
	} else {
		res, err = database.PostgresDB.ExecContext(r.Context(), `
			UPDATE bookings SET status = $1, updated_at = $2
			WHERE id = $3 AND status != 'CANCELLED'
			AND (user_id = $4 OR listing_id IN (SELECT id FROM listings WHERE user_id = $4))
		`, req.Status, time.Now(), id, userID)
	}
	if err != nil {
		log.Printf("update booking: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update booking")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "Booking not found")
		return
	}

	writeMessage(w, http.StatusOK, "Booking updated")
}
