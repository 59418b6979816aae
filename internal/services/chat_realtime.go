package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mtaa-app/mtaa-backend/internal/database"
	"github.com/mtaa-app/mtaa-backend/internal/models"
)

// Chat event types broadcast over Redis and WebSocket.
const (
	EventTypeMessage     = "message"
	EventTypeMessageAck  = "message_ack"
	EventTypeTypingStart = "typing_start"
	EventTypeTypingStop  = "typing_stop"
	EventTypeError       = "error"
)

// ChatEvent is the payload broadcast over Redis and WebSocket.
type ChatEvent struct {
	Type           string              `json:"type"`
	NeighborhoodID string              `json:"neighborhood_id,omitempty"`
	UserID         string              `json:"user_id,omitempty"`
	Username       string              `json:"username,omitempty"`
	Message        *models.ChatMessage `json:"message,omitempty"`
	Error          string              `json:"error,omitempty"`
	Timestamp      time.Time           `json:"timestamp,omitempty"`
}

const chatChannelPrefix = "chat:neighborhood:"

// chatHub fans Redis events out to local WebSocket subscribers, keyed by
// neighborhood id.
type chatHub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan ChatEvent]struct{}
}

var (
	hub          = &chatHub{subscribers: make(map[string]map[chan ChatEvent]struct{})}
	redisStarted sync.Once
)

// SubscribeToNeighborhoodChat registers a local subscriber for a
// neighborhood's events. The returned cancel func must be called on
// disconnect.
func SubscribeToNeighborhoodChat(neighborhoodID string) (<-chan ChatEvent, func()) {
	ch := make(chan ChatEvent, 16)

	hub.mu.Lock()
	if hub.subscribers[neighborhoodID] == nil {
		hub.subscribers[neighborhoodID] = make(map[chan ChatEvent]struct{})
	}
	hub.subscribers[neighborhoodID][ch] = struct{}{}
	hub.mu.Unlock()

	cancel := func() {
		hub.mu.Lock()
		if subs, ok := hub.subscribers[neighborhoodID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
			if len(subs) == 0 {
				delete(hub.subscribers, neighborhoodID)
			}
		}
		hub.mu.Unlock()
	}
	return ch, cancel
}

// fanOut delivers an event to all local subscribers of its neighborhood.
// Slow subscribers are skipped rather than blocked on.
func fanOut(event ChatEvent) {
	if event.NeighborhoodID == "" {
		return
	}

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for ch := range hub.subscribers[event.NeighborhoodID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// StartChatSubscriber ensures a single shared Redis listener per
// instance. Events published by any instance reach local subscribers
// through this loop.
func StartChatSubscriber(ctx context.Context) {
	redisStarted.Do(func() {
		go runChatSubscriber(ctx)
	})
}

func runChatSubscriber(ctx context.Context) {
	client := database.RedisClient
	if client == nil {
		log.Println("Redis client not initialized; chat subscriber not started")
		return
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := client.PSubscribe(ctx, chatChannelPrefix+"*")
			defer pubsub.Close()

			log.Println("✅ Chat Redis subscriber started (pattern: " + chatChannelPrefix + "*)")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					log.Printf("Redis subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event ChatEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("failed to unmarshal chat event: %v", err)
					continue
				}

				fanOut(event)
			}
		}()
	}
}

// PublishChatEvent publishes an event to Redis so every instance's
// subscribers receive it.
func PublishChatEvent(ctx context.Context, event ChatEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, chatChannelPrefix+event.NeighborhoodID, data).Err()
}
