package models

import (
	"time"

	"github.com/google/uuid"
)

// Listing statuses
const (
	ListingActive = "ACTIVE"
	ListingSold   = "SOLD"
	ListingClosed = "CLOSED"
)

type Listing struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	NeighborhoodID uuid.UUID `json:"neighborhood_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	PriceKES       float64   `json:"price_kes"`
	Category       string    `json:"category"`
	ImageURL       string    `json:"image_url,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
