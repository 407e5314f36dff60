package session

import "time"

// Script identifies the writing system of a session's transcript.
type Script string

const (
	ScriptLatin    Script = "lat"
	ScriptCyrillic Script = "cyr"
)

// DefaultScript is used when a create request omits the script.
const DefaultScript = ScriptLatin

func (s Script) Valid() bool {
	return s == ScriptLatin || s == ScriptCyrillic
}

// Session is a transcript record, optionally paired with one audio blob.
// AudioURL and AudioSize are set together or not at all: the pointer is
// attached only after the blob write succeeds.
type Session struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"userId"`
	Text      string    `json:"text"`
	Duration  float64   `json:"duration"`
	Script    Script    `json:"script"`
	AudioURL  string    `json:"audioUrl,omitempty"`
	AudioSize int64     `json:"audioSize,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasAudio reports whether an audio blob is attached to the session.
func (s *Session) HasAudio() bool {
	return s.AudioURL != ""
}

// SortField selects the column sessions are listed by.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
	SortByDuration  SortField = "duration"
)

func (f SortField) Valid() bool {
	return f == SortByCreatedAt || f == SortByUpdatedAt || f == SortByDuration
}

// SortOrder is the list direction.
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

func (o SortOrder) Valid() bool {
	return o == OrderAsc || o == OrderDesc
}

// Stats aggregates a user's sessions.
type Stats struct {
	TotalSessions   int64   `json:"totalSessions"`
	TotalDuration   float64 `json:"totalDuration"`
	AverageDuration float64 `json:"averageDuration"`
	TotalAudioSize  int64   `json:"totalAudioSize"`
}
