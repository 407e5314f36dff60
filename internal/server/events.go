package server

import "time"

// Client-to-server message types.
const (
	MessageJoinSession         = "join_session"
	MessageLeaveSession        = "leave_session"
	MessageTranscriptionUpdate = "transcription_update"
)

// Server-to-client event types.
const (
	EventSessionJoined         = "session_joined"
	EventTranscriptionReceived = "transcription_received"
)

// clientMessage is the envelope for everything a connection sends after
// the handshake.
type clientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	IsFinal   bool   `json:"isFinal"`
}

type sessionJoinedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type transcriptionReceivedEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	IsFinal   bool   `json:"isFinal"`
	Timestamp string `json:"timestamp"`
}

func newSessionJoined(sessionID string) sessionJoinedEvent {
	return sessionJoinedEvent{
		Type:      EventSessionJoined,
		SessionID: sessionID,
		Message:   "Successfully joined session",
	}
}

func newTranscriptionReceived(sessionID, text string, isFinal bool, now time.Time) transcriptionReceivedEvent {
	return transcriptionReceivedEvent{
		Type:      EventTranscriptionReceived,
		SessionID: sessionID,
		Text:      text,
		IsFinal:   isFinal,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
}
