package interfaces

import (
	"context"

	"github.com/ternarybob/dossier/internal/models"
)

// SessionStore maps chat user ids to conversation sessions.
// Implementations are interchangeable behind this interface.
type SessionStore interface {
	// GetOrCreate returns the user's session, creating an initial one on first use
	GetOrCreate(ctx context.Context, userID string) (*models.Session, error)
	// Save stores the mutated session
	Save(ctx context.Context, session *models.Session) error
	// Reset returns the user's session to initial values
	Reset(ctx context.Context, userID string) error
	Close() error
}
