package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mtaa-app/mtaa-backend/internal/middleware"
	"github.com/mtaa-app/mtaa-backend/internal/models"
	"github.com/mtaa-app/mtaa-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the router level
	},
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
	wsMaxMsgSize = 4096
)

// inbound frame from a chat client.
type wsClientFrame struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// wsConn serializes writes to one socket. The event pump and the read
// loop both answer on the same connection, and gorilla connections
// support only a single concurrent writer.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *wsConn) CloseNormal() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// GetChatHistory returns paginated chat history for the caller's
// neighborhood. ?before=RFC3339 scrolls further back.
func GetChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	user, err := userStore.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	if user.NeighborhoodID == nil {
		writeError(w, http.StatusForbidden, "Join a neighborhood to access chat")
		return
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid before timestamp")
			return
		}
		before = &t
	}

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)

	msgs, hasMore, err := services.LoadChatMessages(r.Context(), user.NeighborhoodID.String(), before, limit)
	if err != nil {
		log.Printf("chat history: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load chat history")
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"messages": msgs,
		"has_more": hasMore,
	})
}

// ChatWebSocket upgrades to a WebSocket scoped to the caller's
// neighborhood. Auth is via Authorization header or ?token= (browsers
// cannot set headers on WebSocket dials).
func ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	raw := middleware.ExtractBearerToken(r.Header.Get("Authorization"))
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		writeError(w, http.StatusUnauthorized, "Missing access token")
		return
	}

	userID, err := tokens.ParseAccessToken(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	user, err := userStore.FindByID(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}
	if user.NeighborhoodID == nil {
		writeError(w, http.StatusForbidden, "Join a neighborhood to access chat")
		return
	}
	neighborhoodID := user.NeighborhoodID.String()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade: %v", err)
		return
	}
	ws := &wsConn{conn: conn}

	events, cancel := services.SubscribeToNeighborhoodChat(neighborhoodID)
	defer cancel()

	done := make(chan struct{})
	go writePump(ws, events, done)

	readPump(ws, user, neighborhoodID)
	close(done)
}

// writePump forwards hub events to the socket and keeps it alive with
// pings.
func writePump(ws *wsConn, events <-chan services.ChatEvent, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				ws.CloseNormal()
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.Ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readPump consumes client frames until the socket closes.
func readPump(ws *wsConn, user *models.User, neighborhoodID string) {
	defer ws.Close()

	ws.conn.SetReadLimit(wsMaxMsgSize)
	ws.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	ws.conn.SetPongHandler(func(string) error {
		ws.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		var frame wsClientFrame
		if err := ws.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("websocket read: %v", err)
			}
			return
		}

		switch frame.Type {
		case services.EventTypeMessage:
			handleChatMessage(ws, user, neighborhoodID, frame.Text)
		case services.EventTypeTypingStart, services.EventTypeTypingStop:
			broadcastTyping(frame.Type, user, neighborhoodID)
		}
	}
}

func handleChatMessage(ws *wsConn, user *models.User, neighborhoodID, text string) {
	if text == "" || len(text) > 2000 {
		ws.WriteJSON(services.ChatEvent{
			Type:  services.EventTypeError,
			Error: "Message must be between 1 and 2000 characters",
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	msg, err := services.SaveChatMessage(ctx, &models.ChatMessage{
		NeighborhoodID: neighborhoodID,
		SenderID:       user.ID.String(),
		SenderUsername: user.Username,
		Text:           text,
	})
	if err != nil {
		log.Printf("save chat message: %v", err)
		ws.WriteJSON(services.ChatEvent{
			Type:  services.EventTypeError,
			Error: "Failed to send message",
		})
		return
	}

	event := services.ChatEvent{
		Type:           services.EventTypeMessage,
		NeighborhoodID: neighborhoodID,
		UserID:         user.ID.String(),
		Username:       user.Username,
		Message:        msg,
	}
	if err := services.PublishChatEvent(ctx, event); err != nil {
		log.Printf("publish chat event: %v", err)
	}

	// Ack to the sender with the persisted id.
	ws.WriteJSON(services.ChatEvent{
		Type:           services.EventTypeMessageAck,
		NeighborhoodID: neighborhoodID,
		Message:        msg,
	})
}

func broadcastTyping(eventType string, user *models.User, neighborhoodID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := services.PublishChatEvent(ctx, services.ChatEvent{
		Type:           eventType,
		NeighborhoodID: neighborhoodID,
		UserID:         user.ID.String(),
		Username:       user.Username,
	})
	if err != nil {
		log.Printf("publish typing event: %v", err)
	}
}
