package session

import (
	"time"
)

// Session is a named, durable multi-turn generation context. A session with
// zero turns is valid but empty; it exists only in memory until the first
// successful generation commits a turn.
type Session struct {
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
	Turns     []Turn
}

func NewSession(name string) *Session {
	return &Session{Name: name}
}

// LastImagePath returns the image produced by the most recent turn, or ""
// when the session has no turns yet.
func (s *Session) LastImagePath() string {
	if len(s.Turns) == 0 {
		return ""
	}
	return s.Turns[len(s.Turns)-1].ImagePath
}

// Turn is one prompt/response pair recorded within a session. ImagePath
// points into session-local storage, not the global output directory.
type Turn struct {
	ID          string
	SessionName string
	Seq         int
	Prompt      string
	ImagePath   string
	Params      TurnParameters
	CreatedAt   time.Time
}

// TurnParameters records the settings used for a turn. Recorded for audit;
// never reused automatically on continuation.
type TurnParameters struct {
	Model       string
	AspectRatio string
	Size        string
}

// Summary is the listing view of a session.
type Summary struct {
	Name      string
	TurnCount int
	LastModel string
	UpdatedAt time.Time
}
