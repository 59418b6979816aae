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

type CreatePostRequest struct {
	NeighborhoodID string `json:"neighborhood_id" validate:"required,uuid"`
	Body           string `json:"body" validate:"required,max=2000"`
	ImageURL       string `json:"image_url,omitempty" validate:"omitempty,url"`
}

type UpdatePostRequest struct {
	Body     *string `json:"body,omitempty" validate:"omitempty,max=2000"`
	ImageURL *string `json:"image_url,omitempty" validate:"omitempty,url"`
}

// CreatePost publishes a post to a neighborhood feed.
func CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req CreatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	neighborhoodID, _ := uuid.Parse(req.NeighborhoodID)

	post := models.Post{
		ID:             uuid.New(),
		UserID:         userID,
		NeighborhoodID: neighborhoodID,
		Body:           req.Body,
		ImageURL:       req.ImageURL,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	_, err := database.PostgresDB.ExecContext(r.Context(), `
		INSERT INTO posts (id, user_id, neighborhood_id, body, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7)
	`, post.ID, post.UserID, post.NeighborhoodID, post.Body, post.ImageURL, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		log.Printf("create post: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create post")
		return
	}

	writeData(w, http.StatusCreated, post)
}

// ListPosts returns a neighborhood's feed, newest first, with simple
// limit/offset paging.
func ListPosts(w http.ResponseWriter, r *http.Request) {
	neighborhoodID, err := uuid.Parse(r.URL.Query().Get("neighborhood_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "neighborhood_id is required")
		return
	}

	limit := parseLimit(r.URL.Query().Get("limit"), 20, 100)
	offset := parseOffset(r.URL.Query().Get("offset"))

	rows, err := database.PostgresDB.QueryContext(r.Context(), `
		SELECT p.id, p.user_id, p.neighborhood_id, p.body, p.image_url, p.created_at, p.updated_at, u.username
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.neighborhood_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`, neighborhoodID, limit, offset)
	if err != nil {
		log.Printf("list posts: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list posts")
		return
	}
	defer rows.Close()

	posts := []models.Post{}
	for rows.Next() {
		var p models.Post
		var imageURL sql.NullString
		if err := rows.Scan(&p.ID, &p.UserID, &p.NeighborhoodID, &p.Body, &imageURL, &p.CreatedAt, &p.UpdatedAt, &p.Username); err != nil {
			log.Printf("list posts: scan: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to list posts")
			return
		}
		p.ImageURL = imageURL.String
		posts = append(posts, p)
	}

	writeData(w, http.StatusOK, posts)
}

// GetPost fetches one post.
func GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	var p models.Post
	var imageURL sql.NullString
	err = database.PostgresDB.QueryRowContext(r.Context(), `
		SELECT p.id, p.user_id, p.neighborhood_id, p.body, p.image_url, p.created_at, p.updated_at, u.username
		FROM posts p
		JOIN users u ON u.id = p.user_id
		WHERE p.id = $1
	`, id).Scan(&p.ID, &p.UserID, &p.NeighborhoodID, &p.Body, &imageURL, &p.CreatedAt, &p.UpdatedAt, &p.Username)
	if err == sql.ErrNoRows {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		log.Printf("get post: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load post")
		return
	}
	p.ImageURL = imageURL.String

	writeData(w, http.StatusOK, p)
}

// UpdatePost lets the author edit body or image.
func UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	var req UpdatePostRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	res, err := database.PostgresDB.ExecContext(r.Context(), `
		UPDATE posts SET
			body = COALESCE($1, body),
			image_url = COALESCE($2, image_url),
			updated_at = $3
		WHERE id = $4 AND user_id = $5
	`, req.Body, req.ImageURL, time.Now(), id, userID)
	if err != nil {
		log.Printf("update post: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update post")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	writeMessage(w, http.StatusOK, "Post updated")
}

// DeletePost lets the author remove a post.
func DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	res, err := database.PostgresDB.ExecContext(r.Context(), `
		DELETE FROM posts WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		log.Printf("delete post: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete post")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		writeError(w, http.StatusNotFound, "Post not found")
		return
	}

	writeMessage(w, http.StatusOK, "Post deleted")
}
