package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/models"
)

const chatCollection = "chat_messages"

// EnsureChatIndexes configures indexes for the chat_messages collection.
// Called on startup from main after Mongo has connected.
func EnsureChatIndexes(ctx context.Context) error {
	col := database.MongoDB.Collection(chatCollection)

	// Compound index on (neighborhood_id, created_at) for paginated history.
	model := mongo.IndexModel{
		Keys: bson.D{
			{Key: "neighborhood_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("idx_neighborhood_created"),
	}

	_, err := col.Indexes().CreateOne(ctx, model)
	return err
}

// SaveChatMessage persists a neighborhood chat message and returns it
// with the generated id.
func SaveChatMessage(ctx context.Context, msg *models.ChatMessage) (*models.ChatMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Status == "" {
		msg.Status = models.MessageStatusSent
	}

	col := database.MongoDB.Collection(chatCollection)
	res, err := col.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return msg, nil
}

// LoadChatMessages returns paginated chat history for a neighborhood.
// Pagination is timestamp-based (newest-first scrolling); results are
// returned oldest-first for rendering.
func LoadChatMessages(ctx context.Context, neighborhoodID string, before *time.Time, limit int64) ([]models.ChatMessage, bool, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	col := database.MongoDB.Collection(chatCollection)

	filter := bson.M{"neighborhood_id": neighborhoodID}
	if before != nil {
		filter["created_at"] = bson.M{"$lt": before.UTC()}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit + 1)

	cur, err := col.Find(ctx, filter, opts)
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var msgs []models.ChatMessage
	for cur.Next(ctx) {
		var m models.ChatMessage
		if err := cur.Decode(&m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	if err := cur.Err(); err != nil {
		return nil, false, err
	}

	hasMore := int64(len(msgs)) > limit
	if hasMore {
		msgs = msgs[:len(msgs)-1]
	}

	// Reverse to oldest-first for the UI.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, hasMore, nil
}
