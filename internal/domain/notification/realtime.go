package notification

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const sendBuffer = 16

// conn is one live websocket subscriber.
type conn struct {
	userID uuid.UUID
	ws     *websocket.Conn
	send   chan []byte
}

// Hub fans notifications out to connected clients. Single-instance
// only; cross-instance delivery rides on the stored rows.
type Hub struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[*conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[uuid.UUID]map[*conn]struct{})}
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[c.userID] == nil {
		h.conns[c.userID] = make(map[*conn]struct{})
	}
	h.conns[c.userID][c] = struct{}{}
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.conns[c.userID]; ok {
		if _, ok := set[c]; ok {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.conns, c.userID)
			}
		}
	}
}

// SendToUser pushes payload to every live connection of userID.
// Slow consumers are dropped rather than blocking the caller.
func (h *Hub) SendToUser(userID uuid.UUID, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal realtime payload")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[userID] {
		select {
		case c.send <- raw:
		default:
			log.Warn().Str("user_id", userID.String()).Msg("realtime send buffer full, dropping event")
		}
	}
}

func (c *conn) writeLoop(h *Hub) {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *conn) readLoop(h *Hub) {
	defer func() {
		h.unregister(c)
		c.ws.Close()
	}()
	for {
		// Clients never send meaningful frames; the read loop exists to
		// observe close and pong frames.
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}
