// Package events fans launcher lifecycle events out to connected UI clients
// over WebSocket.
package events

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/spotlaunch/launcherd/internal/logging"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev
	},
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 32
)

// Event is one broadcast message. Type names follow dotted lowercase
// convention ("view.opened", "corpus.refreshed").
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Hub tracks connected clients and broadcasts events to all of them. Slow
// clients are dropped rather than allowed to stall the broadcast path.
type Hub struct {
	log   *logging.Logger
	conns prometheus.Gauge

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub creates an empty hub.
func NewHub(log *logging.Logger) *Hub {
	return &Hub{
		log:     log.Component("events"),
		clients: make(map[*client]struct{}),
	}
}

// TrackConnections mirrors the live client count into g. Set it before the
// hub starts accepting connections.
func (h *Hub) TrackConnections(g prometheus.Gauge) {
	h.conns = g
}

func (h *Hub) syncConnsLocked() {
	if h.conns != nil {
		h.conns.Set(float64(len(h.clients)))
	}
}

// HandleConnection upgrades an HTTP request and serves the client until it
// disconnects.
func (h *Hub) HandleConnection(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{conn: conn, send: make(chan Event, sendBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[cl] = struct{}{}
	h.syncConnsLocked()
	h.mu.Unlock()

	go h.writePump(cl)

	// The read loop exists to observe disconnects; clients send nothing
	// meaningful upstream on this socket.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.drop(cl)
}

// Broadcast delivers the event to every connected client.
func (h *Hub) Broadcast(eventType string, payload any) {
	ev := Event{Type: eventType, Payload: payload}

	h.mu.Lock()
	for cl := range h.clients {
		select {
		case cl.send <- ev:
		default:
			// Buffer full: the client is not keeping up.
			delete(h.clients, cl)
			close(cl.send)
		}
	}
	h.syncConnsLocked()
	h.mu.Unlock()
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops accepting new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for cl := range h.clients {
		delete(h.clients, cl)
		close(cl.send)
	}
	h.syncConnsLocked()
	h.mu.Unlock()
}

func (h *Hub) writePump(cl *client) {
	defer cl.conn.Close()
	for ev := range cl.send {
		cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := cl.conn.WriteJSON(ev); err != nil {
			h.drop(cl)
			return
		}
	}
	cl.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (h *Hub) drop(cl *client) {
	h.mu.Lock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
		h.syncConnsLocked()
	}
	h.mu.Unlock()
	cl.conn.Close()
}
