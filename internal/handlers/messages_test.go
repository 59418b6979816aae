package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// The event pump and the read loop share one connection, so concurrent
// writes must come out as whole frames.
func TestChatConnSerializesConcurrentWrites(t *testing.T) {
	const writers, perWriter = 8, 25

	received := make(chan struct{}, writers*perWriter)
	up := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var frame wsClientFrame
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			received <- struct{}{}
		}
	}))
	defer srv.Close()

	raw, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	ws := &wsConn{conn: raw}
	defer ws.Close()

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				if err := ws.WriteJSON(wsClientFrame{Type: "message", Text: "habari"}); err != nil {
					t.Errorf("WriteJSON: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	deadline := time.After(5 * time.Second)
	for i := 0; i < writers*perWriter; i++ {
		select {
		case <-received:
		case <-deadline:
			t.Fatalf("only %d of %d frames arrived intact", i, writers*perWriter)
		}
	}
}
