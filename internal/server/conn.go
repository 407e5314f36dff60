package server

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Conn is one authenticated websocket connection. The hub owns its
// registry membership; the two pumps own the socket.
type Conn struct {
	userID int64
	hub    *Hub
	sock   *websocket.Conn
	send   chan []byte
	logger zerolog.Logger
}

func newConn(hub *Hub, sock *websocket.Conn, userID int64, logger zerolog.Logger) *Conn {
	return &Conn{
		userID: userID,
		hub:    hub,
		sock:   sock,
		send:   make(chan []byte, sendBufferSize),
		logger: logger.With().Int64("user_id", userID).Logger(),
	}
}

// enqueue hands an event to the write pump without blocking the caller.
func (c *Conn) enqueue(event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		c.logger.Error().Err(err).Msg("event marshal failed")
		return
	}

	select {
	case c.send <- payload:
	default:
		c.logger.Warn().Msg("send buffer full, dropping event")
	}
}

// readPump consumes client messages until the socket errors or closes,
// then unregisters the connection. Room routing happens here.
func (c *Conn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.sock.Close()
	}()

	c.sock.SetReadLimit(maxMessageSize)
	if err := c.sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("set read deadline failed")
		return
	}
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected websocket close")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn().Err(err).Msg("unparseable client message")
			continue
		}
		if msg.SessionID == "" {
			continue
		}

		switch msg.Type {
		case MessageJoinSession:
			c.hub.Join(c, msg.SessionID)
			c.enqueue(newSessionJoined(msg.SessionID))
		case MessageLeaveSession:
			c.hub.Leave(c, msg.SessionID)
		case MessageTranscriptionUpdate:
			c.hub.BroadcastTranscription(msg.SessionID, msg.Text, msg.IsFinal)
		default:
			c.logger.Warn().Str("type", msg.Type).Msg("unknown message type")
		}
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.sock.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hub closed the channel on unregister.
				_ = c.sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.sock.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.sock.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
