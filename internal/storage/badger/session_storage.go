package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
)

var _ interfaces.SessionStore = (*SessionStorage)(nil)

// SessionStorage keeps conversation sessions in badgerhold
type SessionStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSessionStorage creates a session store on an in-memory database
func NewSessionStorage(logger arbor.ILogger) (*SessionStorage, error) {
	db, err := NewBadgerDB(logger)
	if err != nil {
		return nil, err
	}
	return &SessionStorage{db: db, logger: logger}, nil
}

// GetOrCreate returns the user's session, storing a new initial one on first use
func (s *SessionStorage) GetOrCreate(ctx context.Context, userID string) (*models.Session, error) {
	var session models.Session
	err := s.db.Store().Get(userID, &session)
	if err == nil {
		return &session, nil
	}
	if !errors.Is(err, badgerhold.ErrNotFound) {
		return nil, fmt.Errorf("failed to load session %s: %w", userID, err)
	}

	created := models.NewSession(userID)
	if err := s.db.Store().Insert(userID, created); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", userID, err)
	}
	s.logger.Debug().Str("user_id", userID).Msg("Session created")
	return created, nil
}

// Save stores the session under its user id
func (s *SessionStorage) Save(ctx context.Context, session *models.Session) error {
	session.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(session.UserID, session); err != nil {
		return fmt.Errorf("failed to save session %s: %w", session.UserID, err)
	}
	return nil
}

// Reset returns the user's session to initial values
func (s *SessionStorage) Reset(ctx context.Context, userID string) error {
	session, err := s.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}
	session.Reset()
	return s.Save(ctx, session)
}

// Close releases the database
func (s *SessionStorage) Close() error {
	return s.db.Close()
}
