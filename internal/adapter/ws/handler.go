// Package ws implements the WebSocket adapter that streams review
// lifecycle events to dashboard clients.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
)

// Message is the envelope for all WebSocket frames sent to clients.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// client is one connected dashboard session.
type client struct {
	sock   *websocket.Conn
	cancel context.CancelFunc
}

// Hub fans review lifecycle events out to every connected dashboard
// client. It holds no per-client state beyond the connection itself;
// clients that miss events catch up through the read API.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// HandleWS upgrades the request to a WebSocket session and registers it
// with the hub. The client is dropped on its first read error.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The request context dies when this handler returns, which would
	// kill the read loop and drop the client immediately. The session
	// lives until the peer disconnects or the hub removes it.
	ctx, cancel := context.WithCancel(context.Background())
	c := &client{sock: sock, cancel: cancel}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	active := len(h.clients)
	h.mu.Unlock()

	slog.Info("dashboard client connected", "remote", r.RemoteAddr, "active", active)

	// Incoming frames carry nothing we act on; the read loop exists to
	// notice disconnects promptly.
	go func() {
		defer func() {
			h.remove(c)
			_ = sock.Close(websocket.StatusNormalClosure, "")
		}()
		for {
			if _, _, err := sock.Read(ctx); err != nil {
				return
			}
		}
	}()
}

// Broadcast sends one message to every connected client. Clients whose
// write fails are dropped after the pass completes.
func (h *Hub) Broadcast(ctx context.Context, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("websocket marshal failed", "type", msg.Type, "error", err)
		return
	}

	var stale []*client
	h.mu.RLock()
	for c := range h.clients {
		if err := c.sock.Write(ctx, websocket.MessageText, data); err != nil {
			stale = append(stale, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range stale {
		h.remove(c)
	}
}

// ConnectionCount returns the number of connected clients.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		c.cancel()
		delete(h.clients, c)
		slog.Info("dashboard client disconnected", "active", len(h.clients))
	}
}
