// Package stream pushes live-call snapshots to dashboard clients over
// WebSocket, so browsers do not have to poll the REST API themselves.
package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Same-origin is enforced upstream by the auth middleware; the socket
	// itself accepts any origin.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type EventType string

const (
	EventSnapshot     EventType = "snapshot"
	EventPollerStatus EventType = "poller_status"
)

// Message is the envelope every client receives.
type Message struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Client is one dashboard socket, pinned to the account it authenticated for.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	accountCode string
}

// Hub fans messages out to connected clients. Every client only ever sees
// events for its own account.
type Hub struct {
	log *slog.Logger

	register   chan *Client
	unregister chan *Client
	events     chan event

	mu      sync.RWMutex
	clients map[*Client]bool
}

type event struct {
	accountCode string
	payload     []byte
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		log:        log,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan event, 256),
		clients:    make(map[*Client]bool),
	}
}

// Run dispatches until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("stream client connected", "account_code", client.accountCode, "clients", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("stream client disconnected", "clients", n)

		case ev := <-h.events:
			h.mu.Lock()
			for client := range h.clients {
				if client.accountCode != ev.accountCode {
					continue
				}
				select {
				case client.send <- ev.payload:
				default:
					// Slow consumer: drop it rather than block the hub.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues an event for every client of one account.
func (h *Hub) Broadcast(accountCode string, eventType EventType, data any) {
	msg := Message{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("stream marshal failed", "err", err)
		return
	}

	select {
	case h.events <- event{accountCode: accountCode, payload: payload}:
	default:
		h.log.Warn("stream event dropped, hub backlog full", "account_code", accountCode)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Serve upgrades an authenticated request to a WebSocket pinned to
// accountCode.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, accountCode string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("stream upgrade failed", "err", err)
		return
	}

	client := &Client{
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, 64),
		accountCode: accountCode,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection; clients send nothing we act on, but reads
// drive pong handling and disconnect detection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
