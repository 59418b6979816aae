package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/middleware"
	"github.com/mtaa-app/mtaa-backend/internal/services"
)

type UpdateProfileRequest struct {
	DisplayName    *string `json:"display_name,omitempty" validate:"omitempty,max=100"`
	Bio            *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	AvatarURL      *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
	Language       *string `json:"language,omitempty" validate:"omitempty,oneof=en sw"`
	MpesaNumber    *string `json:"mpesa_number,omitempty" validate:"omitempty,e164"`
	NeighborhoodID *string `json:"neighborhood_id,omitempty" validate:"omitempty,uuid"`
}

// GetMe returns the authenticated user's profile.
func GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := userStore.FindByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("get me: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load profile")
		return
	}
	writeData(w, http.StatusOK, user)
}

// UpdateMe applies a partial profile update.
func UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	var neighborhoodID *uuid.UUID
	if req.NeighborhoodID != nil {
		nid, err := uuid.Parse(*req.NeighborhoodID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid neighborhood id")
			return
		}
		if _, err := services.GetNeighborhood(r.Context(), nid); err != nil {
			writeError(w, http.StatusBadRequest, "Unknown neighborhood")
			return
		}
		neighborhoodID = &nid
	}

	user, err := userStore.UpdateProfile(r.Context(), userID,
		req.DisplayName, req.Bio, req.AvatarURL, req.Language, req.MpesaNumber, neighborhoodID)
	if err != nil {
		log.Printf("update me: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	writeData(w, http.StatusOK, user)
}

// DeactivateMe soft-deletes the account and revokes every session.
func DeactivateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	if err := userStore.Deactivate(r.Context(), userID); err != nil {
		log.Printf("deactivate: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to deactivate account")
		return
	}
	if err := tokens.RevokeAll(r.Context(), userID); err != nil {
		log.Printf("deactivate: revoke sessions: %v", err)
	}
	writeMessage(w, http.StatusOK, "Account deactivated")
}
