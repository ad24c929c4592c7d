package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mikro-fleet/monitor/internal/model"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsSendBuffer   = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API sits behind the deployment's own ingress; origin policy
	// is enforced there.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Hub broadcasts emitted alerts to websocket subscribers. It satisfies
// the emitter's notifier contract, so delivery stays best-effort.
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan model.Notification
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*wsClient]struct{})}
}

// Notify fans the notification out. Subscribers that cannot keep up are
// dropped rather than blocking the emitter.
func (h *Hub) Notify(_ context.Context, notification model.Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- notification:
		default:
			h.logger.Warn("dropping slow websocket subscriber")
			delete(h.clients, client)
			close(client.send)
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams alerts until the peer
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := &wsClient{conn: conn, send: make(chan model.Notification, wsSendBuffer)}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writePump(client)
	h.readUntilClose(client)
}

func (h *Hub) writePump(client *wsClient) {
	for notification := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := client.conn.WriteJSON(notification); err != nil {
			h.drop(client)
			return
		}
	}
	_ = client.conn.Close()
}

// readUntilClose discards inbound frames; the feed is one-way.
func (h *Hub) readUntilClose(client *wsClient) {
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			h.drop(client)
			return
		}
	}
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	_ = client.conn.Close()
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		_ = client.conn.Close()
	}
}
