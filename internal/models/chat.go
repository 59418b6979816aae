package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Chat message delivery states
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// ChatMessage is a neighborhood chat message persisted in MongoDB.
type ChatMessage struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	NeighborhoodID string             `bson:"neighborhood_id" json:"neighborhood_id"`
	SenderID       string             `bson:"sender_id" json:"sender_id"`
	SenderUsername string             `bson:"sender_username,omitempty" json:"sender_username,omitempty"`
	Text           string             `bson:"text" json:"text"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	Status         string             `bson:"status" json:"status"`
}
