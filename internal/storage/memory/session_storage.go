// Package memory holds conversation sessions in a process-local map
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
)

var _ interfaces.SessionStore = (*SessionStorage)(nil)

// SessionStorage is a mutex-guarded map of sessions keyed by user id.
// Callers receive copies, so a session only changes through Save.
type SessionStorage struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

// NewSessionStorage creates an empty store
func NewSessionStorage() *SessionStorage {
	return &SessionStorage{sessions: make(map[string]models.Session)}
}

// GetOrCreate returns a copy of the user's session, creating it on first use
func (s *SessionStorage) GetOrCreate(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[userID]
	if !ok {
		session = *models.NewSession(userID)
		s.sessions[userID] = session
	}
	return cloneSession(session), nil
}

// Save stores a copy of the session
func (s *SessionStorage) Save(ctx context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.UpdatedAt = time.Now()
	s.sessions[session.UserID] = *cloneSession(*session)
	return nil
}

// Reset returns the user's session to initial values
func (s *SessionStorage) Reset(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := *models.NewSession(userID)
	s.sessions[userID] = session
	return nil
}

// Close is a no-op
func (s *SessionStorage) Close() error {
	return nil
}

func cloneSession(session models.Session) *models.Session {
	session.ProjectTypes = append([]string(nil), session.ProjectTypes...)
	session.Documents = append([]models.RawInput(nil), session.Documents...)
	session.Normalized = append([]models.Document(nil), session.Normalized...)
	return &session
}
