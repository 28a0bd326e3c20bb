// Package ws pushes notification frames to connected operator clients.
package ws

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultWriteWait = 5 * time.Second

// Hub tracks websocket subscribers of the notification feed.
type Hub struct {
	mu        sync.Mutex
	conns     map[*websocket.Conn]struct{}
	upgrader  websocket.Upgrader
	logger    *zap.Logger
	writeWait time.Duration
}

// NewHub builds an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		conns: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger:    logger,
		writeWait: defaultWriteWait,
	}
}

// WithWriteWait replaces the per-frame write deadline. Intended for tests.
func (h *Hub) WithWriteWait(d time.Duration) *Hub {
	h.writeWait = d
	return h
}

// HandleUpgrade upgrades the request and registers the client. Inbound
// messages are discarded; the feed is one-way.
func (h *Hub) HandleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	go h.readLoop(conn)
}

func (h *Hub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
	conn.Close()
}

// Broadcast sends the value as a JSON frame to every client. Every write
// carries a deadline so a client that stopped reading cannot hold the hub
// lock hostage; dead and stalled connections are dropped along the way.
func (h *Hub) Broadcast(v interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var lastErr error
	for conn := range h.conns {
		conn.SetWriteDeadline(time.Now().Add(h.writeWait))
		if err := conn.WriteJSON(v); err != nil {
			h.logger.Warn("dropping websocket client", zap.Error(err))
			lastErr = err
			delete(h.conns, conn)
			conn.Close()
		}
	}
	return lastErr
}

// ClientCount reports connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
