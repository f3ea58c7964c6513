package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// client serializes writes to one connection; gorilla allows a single concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}

// Hub manages active WebSocket connections keyed by user ID and pushes
// events to every connection of a user.
type Hub struct {
	mu    sync.RWMutex
	conns map[int64]map[*websocket.Conn]*client
	log   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{
		conns: make(map[int64]map[*websocket.Conn]*client),
		log:   logger,
	}
}

// Register adds a connection for the given user.
func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conns[userID] == nil {
		h.conns[userID] = make(map[*websocket.Conn]*client)
	}
	h.conns[userID][conn] = &client{conn: conn}
}

// Unregister removes a connection for the given user.
func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.conns[userID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.conns, userID)
		}
	}
}

// Online reports whether the user has at least one open connection.
func (h *Hub) Online(userID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[userID]) > 0
}

// SendToUser writes payload to every connection of userID and returns how many
// writes succeeded. Failed connections are closed; their read loop unregisters them.
func (h *Hub) SendToUser(userID int64, payload any) int {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.conns[userID]))
	for _, c := range h.conns[userID] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if err := c.writeJSON(payload); err != nil {
			h.log.Debug("ws write failed, closing", "user_id", userID, "err", err)
			c.conn.Close()
			continue
		}
		sent++
	}
	return sent
}

// send writes to a single registered connection.
func (h *Hub) send(userID int64, conn *websocket.Conn, payload any) {
	h.mu.RLock()
	c := h.conns[userID][conn]
	h.mu.RUnlock()
	if c == nil {
		return
	}
	if err := c.writeJSON(payload); err != nil {
		c.conn.Close()
	}
}
