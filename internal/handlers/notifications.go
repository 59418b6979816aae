package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/middleware"
	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// notifyUser records an in-app notification. Best-effort: failures are
// logged, never surfaced to the triggering request.
func notifyUser(ctx context.Context, userID uuid.UUID, kind, body string) {
	_, err := database.PostgresDB.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, body, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)
	`, uuid.New(), userID, kind, body, time.Now())
	if err != nil {
		log.Printf("notify user %s: %v", userID, err)
	}
}

// ListNotifications returns the caller's notifications, newest first.
// ?unread=true narrows to unread ones.
func ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	query := `
		SELECT id, user_id, kind, body, read, created_at
		FROM notifications
		WHERE user_id = $1`
	if r.URL.Query().Get("unread") == "true" {
		query += " AND read = FALSE"
	}
	query += " ORDER BY created_at DESC LIMIT $2"

	rows, err := database.PostgresDB.QueryContext(r.Context(), query, userID,
		parseLimit(r.URL.Query().Get("limit"), 50, 200))
	if err != nil {
		log.Printf("list notifications: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}
	defer rows.Close()

	notifications := []models.Notification{}
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Kind, &n.Body, &n.Read, &n.CreatedAt); err != nil {
			log.Printf("list notifications: scan: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list notifications")
			return
		}
		notifications = append(notifications, n)
	}

	writeData(w, http.StatusOK, notifications)
}

type MarkReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

// MarkNotificationsRead marks the given notifications read. Only the
// caller's own rows are touched.
func MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req MarkReadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid notification id")
			return
		}
		ids = append(ids, id)
	}

	_, err := database.PostgresDB.ExecContext(r.Context(), `
		UPDATE notifications SET read = TRUE
		WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(ids))
	if err != nil {
		log.Printf("mark notifications read: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update notifications")
		return
	}

	writeMessage(w, http.StatusOK, "Notifications marked read")
}
