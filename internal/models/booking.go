package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking statuses
const (
	BookingPending   = "PENDING"
	BookingConfirmed = "CONFIRMED"
	BookingCancelled = "CANCELLED"
)

type Booking struct {
	ID           uuid.UUID `json:"id"`
	ListingID    uuid.UUID `json:"listing_id"`
	UserID       uuid.UUID `json:"user_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
	Note         string    `json:"note,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
