package handlers

import (
	"log"
	"net/http"

	"github.com/mtaa-app/mtaa-backend/internal/services"
)

var cloudinaryService *services.CloudinaryService

// InitCloudinaryService wires the media upload backend. Optional: when
// credentials are absent the upload endpoint answers 503.
func InitCloudinaryService(cloudName, apiKey, apiSecret string) error {
	svc, err := services.NewCloudinaryService(cloudName, apiKey, apiSecret)
	if err != nil {
		return err
	}
	cloudinaryService = svc
	return nil
}

const maxUploadSize = 10 << 20 // 10 MiB

// UploadFile accepts a multipart file and returns its hosted URL.
func UploadFile(w http.ResponseWriter, r *http.Request) {
	if cloudinaryService == nil {
		writeError(w, http.StatusServiceUnavailable, "File uploads are not configured")
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "File too large or malformed form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field")
		return
	}
	defer file.Close()

	folder := r.FormValue("folder")
	if folder == "" {
		folder = "mtaa"
	}

	url, err := cloudinaryService.UploadFile(r.Context(), file, folder)
	if err != nil {
		log.Printf("upload: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to upload file")
		return
	}

	writeData(w, http.StatusOK, map[string]string{
		"url":      url,
		"filename": header.Filename,
	})
}
