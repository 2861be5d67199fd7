package session

import "time"

type Status string

const (
	StatusOpen  Status = "open"
	StatusEnded Status = "ended"
)

// Session is the conversation state with one counterpart. A counterpart has
// at most one open session; a message after End opens a new one.
type Session struct {
	ID             string    `json:"session_id"`
	Counterpart    string    `json:"counterpart"`
	Status         Status    `json:"status"`
	Turns          int       `json:"turns"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	EndedAt        time.Time `json:"ended_at,omitempty"`
}
