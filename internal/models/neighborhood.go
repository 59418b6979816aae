package models

import (
	"time"

	"github.com/google/uuid"
)

type Neighborhood struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	City        string    `json:"city"`
	County      string    `json:"county,omitempty"`
	Description string    `json:"description,omitempty"`
	CenterLat   *float64  `json:"center_lat,omitempty"`
	CenterLng   *float64  `json:"center_lng,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
