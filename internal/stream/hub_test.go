package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, h *Hub, accountCode string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.Serve(w, r, accountCode)
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func waitForClients(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, h.ClientCount())
}

func TestHub_DeliversSnapshotToOwnAccount(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn, done := dialHub(t, h, "0043")
	defer done()
	waitForClients(t, h, 1)

	h.Broadcast("0043", EventSnapshot, map[string]any{"total": 2})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != EventSnapshot {
		t.Fatalf("unexpected type %q", msg.Type)
	}
}

func TestHub_IsolatesAccounts(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	conn, done := dialHub(t, h, "0044")
	defer done()
	waitForClients(t, h, 1)

	// Event for a different account must never reach this socket.
	h.Broadcast("0043", EventSnapshot, map[string]any{"total": 1})
	h.Broadcast("0044", EventPollerStatus, map[string]any{"status": "active"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != EventPollerStatus {
		t.Fatalf("leaked cross-account event: %+v", msg)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	h := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	conn, done := dialHub(t, h, "0043")
	defer done()
	waitForClients(t, h, 1)

	cancel()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected close after hub shutdown")
	}
	if h.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after shutdown, got %d", h.ClientCount())
	}
}
