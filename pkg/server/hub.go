package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/edelkas/cuse/pkg/wire"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeTimeout = 10 * time.Second
	sendBuffer   = 16
)

// Message is a frame pushed to viewers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// MessageCollection frames carry a decoded *wire.LevelCollection.
const MessageCollection = "collection"

// Hub pushes every decoded collection to the connected viewers.
type Hub struct {
	mu       sync.Mutex
	conns    map[*viewer]struct{}
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type viewer struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a hub. Browser origins outside origins are refused; an
// empty list accepts only same-host requests.
func NewHub(origins []string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Hub{
		conns:  make(map[*viewer]struct{}),
		logger: logger.With("component", "hub"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
	}
	if len(origins) > 0 {
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			for _, allowed := range origins {
				if allowed == "*" || origin == allowed {
					return true
				}
			}
			return false
		}
	}
	return h
}

// Len returns the number of connected viewers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// PublishCollection sends c to every viewer. It never blocks: viewers
// too slow to keep up are dropped.
func (h *Hub) PublishCollection(c *wire.LevelCollection) {
	h.Broadcast(Message{Type: MessageCollection, Data: c})
}

// Broadcast sends msg to every viewer.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to encode message", "type", msg.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.conns {
		select {
		case v.send <- data:
		default:
			h.logger.Warn("dropping slow viewer", "remote_addr", v.conn.RemoteAddr().String())
			delete(h.conns, v)
			close(v.send)
		}
	}
}

// ServeHTTP upgrades the request and registers the viewer until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	v := &viewer{conn: conn, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.conns[v] = struct{}{}
	h.mu.Unlock()
	h.logger.DebugContext(r.Context(), "viewer connected", "remote_addr", conn.RemoteAddr().String())

	go h.writePump(v)
	go h.readPump(v)
}

// Close disconnects every viewer.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for v := range h.conns {
		delete(h.conns, v)
		close(v.send)
	}
}

func (h *Hub) unregister(v *viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[v]; ok {
		delete(h.conns, v)
		close(v.send)
	}
}

// readPump discards viewer input and notices disconnects.
func (h *Hub) readPump(v *viewer) {
	defer func() {
		h.unregister(v)
		v.conn.Close()
	}()

	v.conn.SetReadLimit(4096)
	_ = v.conn.SetReadDeadline(time.Now().Add(pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debug("viewer read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) writePump(v *viewer) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case data, ok := <-v.send:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = v.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := v.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
