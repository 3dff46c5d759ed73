// Package ws fans live history entries out to connected websocket clients.
package ws

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"fleet-monitor/simulation/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the simulation feed is same-origin behind the operator API key
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks connected clients and broadcasts each payload to all of them.
// A client that fails a write is dropped; the feed is best-effort. The mutex
// also serializes writes: gorilla allows one writer per connection, and
// vehicles broadcast concurrently from the worker pool.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]struct{})}
}

func (h *Hub) register(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = struct{}{}
	metrics.WSClients.Store(int64(len(h.clients)))
	log.WithField("remote", conn.RemoteAddr().String()).Info("WebSocket client connected")
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
		metrics.WSClients.Store(int64(len(h.clients)))
		log.WithField("remote", conn.RemoteAddr().String()).Info("WebSocket client disconnected")
	}
}

// Broadcast sends the payload to every connected client. Implements the
// recorder's feed; called once per history entry. Writes stay under the lock
// so concurrent broadcasts never interleave frames on one connection.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.WithField("remote", conn.RemoteAddr().String()).Warnf("WebSocket write failed, dropping client: %v", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
	metrics.WSClients.Store(int64(len(h.clients)))
}

// HandleLive upgrades the request and parks the connection until the client
// goes away. Clients only receive; inbound messages are drained and ignored.
func (h *Hub) HandleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	h.register(conn)

	go func() {
		defer h.unregister(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Close disconnects every client. Used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
	metrics.WSClients.Store(0)
}
