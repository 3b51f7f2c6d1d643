package storage

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/storage/badger"
	"github.com/ternarybob/dossier/internal/storage/memory"
)

// NewSessionStore creates the session store selected by config
func NewSessionStore(logger arbor.ILogger, config *common.Config) (interfaces.SessionStore, error) {
	switch config.Sessions.Backend {
	case "", "memory":
		return memory.NewSessionStorage(), nil
	case "badger":
		return badger.NewSessionStorage(logger)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s (use 'memory' or 'badger')", config.Sessions.Backend)
	}
}
