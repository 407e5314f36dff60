package server

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/matozai/scribe/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS authenticates the handshake and hands the socket to the hub.
// The bearer credential travels out-of-band (Authorization header or token
// query parameter), never as a message; a missing or invalid credential
// ends the connection before any state is created.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r)
	if token == "" {
		http.Error(w, "missing bearer token", http.StatusUnauthorized)
		return
	}

	userID, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket auth failed")
		http.Error(w, "invalid bearer token", http.StatusUnauthorized)
		return
	}

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	conn := newConn(s.hub, sock, userID, s.logger)
	s.hub.Register(conn)

	go conn.writePump()
	go conn.readPump()
}
