package server

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWSDeliversConnectionAndBroadcasts(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	hub := NewHub(logger)
	h := Handler(hub, &coordStub{}, &artifactStub{}, nil, logger)

	srv := httptest.NewServer(h)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial failed: %v", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	// First frame is the connection handshake event.
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read connection event failed: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("unmarshal connection event failed: %v", err)
	}
	if payload["type"] != "connection" || payload["connected"] != true {
		t.Fatalf("unexpected connection event: %s", string(msg))
	}

	// Events broadcast through the hub reach the socket.
	go func() {
		// The subscriber registers during the handler loop; retry briefly.
		for i := 0; i < 50; i++ {
			hub.SessionOpened("s1")
			time.Sleep(10 * time.Millisecond)
		}
	}()

	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast failed: %v", err)
	}
	if err := json.Unmarshal(msg, &payload); err != nil {
		t.Fatalf("unmarshal broadcast failed: %v", err)
	}
	if payload["type"] != "session_opened" || payload["session_id"] != "s1" {
		t.Fatalf("unexpected broadcast event: %s", string(msg))
	}
}
