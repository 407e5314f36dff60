package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Hub is the realtime broadcast registry. It maps authenticated users to
// their live connections and session ids to rooms of interested
// connections. All maps are guarded by one mutex; lifecycle events for
// different connections race freely and must never corrupt the mappings.
//
// The hub performs no ownership check on join: which session ids a client
// subscribes to is the client's choice at this layer.
type Hub struct {
	logger zerolog.Logger

	mu    sync.RWMutex
	conns map[*Conn]struct{}
	users map[int64]map[*Conn]struct{}
	rooms map[string]map[*Conn]struct{}
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
		conns:  make(map[*Conn]struct{}),
		users:  make(map[int64]map[*Conn]struct{}),
		rooms:  make(map[string]map[*Conn]struct{}),
	}
}

// Register adds an authenticated connection to the registry. A second
// device under the same user id gets its own entry; nothing is evicted.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Conn]struct{})
	}
	h.users[c.userID][c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info().Int64("user_id", c.userID).Int("total_conns", total).Msg("connection registered")
}

// Unregister removes the connection from the user registry and from every
// room it joined, and closes its send channel. It is idempotent: a racing
// duplicate disconnect signal is a no-op.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)

	if userConns := h.users[c.userID]; userConns != nil {
		delete(userConns, c)
		if len(userConns) == 0 {
			delete(h.users, c.userID)
		}
	}

	for sessionID, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, sessionID)
		}
	}

	close(c.send)
	total := len(h.conns)
	h.mu.Unlock()

	h.logger.Info().Int64("user_id", c.userID).Int("total_conns", total).Msg("connection unregistered")
}

// Join adds the connection to a session's room, creating the room on
// first join.
func (h *Hub) Join(c *Conn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[c]; !ok {
		return
	}
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Conn]struct{})
	}
	h.rooms[sessionID][c] = struct{}{}
}

// Leave removes the connection from a room, dropping the room when it
// empties. Leaving a room it never joined is a no-op.
func (h *Hub) Leave(c *Conn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[sessionID]
	if members == nil {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, sessionID)
	}
}

// BroadcastTranscription delivers a transcription event, stamped with the
// server clock, to every member of the session's room, the sender
// included. Delivery is best-effort: a member with a full send buffer
// misses the event rather than blocking the room.
func (h *Hub) BroadcastTranscription(sessionID, text string, isFinal bool) {
	event := newTranscriptionReceived(sessionID, text, isFinal, time.Now())
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("transcription event marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for member := range h.rooms[sessionID] {
		select {
		case member.send <- payload:
		default:
			h.logger.Warn().
				Int64("user_id", member.userID).
				Str("session_id", sessionID).
				Msg("send buffer full, dropping transcription event")
		}
	}
}

// RoomSize reports the current membership of a session's room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// UserConnections reports how many live connections a user has.
func (h *Hub) UserConnections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID])
}

// ConnCount reports the total number of registered connections.
func (h *Hub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}
