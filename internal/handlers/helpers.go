package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/mtaa-app/mtaa-backend/internal/validation"
)

// APIResponse is the uniform envelope for JSON responses.
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: true, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, APIResponse{Success: false, Message: message})
}

// decodeAndValidate decodes a JSON body into dst and runs tag-based
// validation, answering 400 itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := validation.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

// rowScanner abstracts over *sql.Row and *sql.Rows for shared scan
// helpers.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func parseLimit(raw string, def, max int) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

func parseOffset(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, APIResponse{
			Success: false,
			Message: "Validation failed",
			Errors:  verr.Fields,
		})
		return
	}
	writeError(w, http.StatusBadRequest, "Validation failed")
}
