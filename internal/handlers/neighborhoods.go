package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mtaa-app/mtaa-backend/internal/services"
)

// ListNeighborhoods returns active neighborhoods, filtered by optional
// ?city= and ?search= query parameters, ordered city then name.
func ListNeighborhoods(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	search := r.URL.Query().Get("search")

	neighborhoods, err := services.ListNeighborhoods(r.Context(), city, search)
	if err != nil {
		log.Printf("list neighborhoods: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list neighborhoods")
		return
	}
	writeData(w, http.StatusOK, neighborhoods)
}

// GetNeighborhood returns one neighborhood by id; 404 when absent.
func GetNeighborhood(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid neighborhood id")
		return
	}

	neighborhood, err := services.GetNeighborhood(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Neighborhood not found")
			return
		}
		log.Printf("get neighborhood: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load neighborhood")
		return
	}
	writeData(w, http.StatusOK, neighborhood)
}
