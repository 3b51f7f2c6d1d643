package models

import "time"

// SessionState is the conversation state of one chat user
type SessionState string

const (
	StateInitial             SessionState = "initial"
	StateWaitingProjectTypes SessionState = "waiting_project_types"
	StateWaitingDocuments    SessionState = "waiting_documents"
	StateAskingMoreDocuments SessionState = "asking_more_documents"
)

// Session holds the per-user conversation state. Never persisted across restarts.
type Session struct {
	UserID       string       `json:"user_id" badgerhold:"key"`
	State        SessionState `json:"state"`
	ProjectTypes []string     `json:"project_types"`
	Documents    []RawInput   `json:"documents"`
	Normalized   []Document   `json:"normalized"` // added while asking for more, normalized on arrival
	ChannelID    string       `json:"channel_id"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewSession creates a session in the initial state
func NewSession(userID string) *Session {
	return &Session{
		UserID:    userID,
		State:     StateInitial,
		UpdatedAt: time.Now(),
	}
}

// Reset returns the session to its initial values, keeping the user identity
func (s *Session) Reset() {
	s.State = StateInitial
	s.ProjectTypes = nil
	s.Documents = nil
	s.Normalized = nil
	s.UpdatedAt = time.Now()
}
