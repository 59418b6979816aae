package models

import (
	"time"

	"github.com/google/uuid"
)

type Post struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	NeighborhoodID uuid.UUID `json:"neighborhood_id"`
	Body           string    `json:"body"`
	ImageURL       string    `json:"image_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Denormalized for feed rendering
	Username string `json:"username,omitempty"`
}
