package badger

import (
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerDB manages an in-memory Badger database
type BadgerDB struct {
	store  *badgerhold.Store
	logger arbor.ILogger
}

// NewBadgerDB opens a Badger database held entirely in memory. Nothing is
// written to disk, so no state survives a restart.
func NewBadgerDB(logger arbor.ILogger) (*BadgerDB, error) {
	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(nil) // Disable default badger logger to use arbor

	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory badger database: %w", err)
	}

	logger.Debug().Msg("In-memory Badger database initialized")

	return &BadgerDB{
		store:  store,
		logger: logger,
	}, nil
}

// Store returns the underlying badgerhold store
func (b *BadgerDB) Store() *badgerhold.Store {
	return b.store
}

// Close closes the database connection
func (b *BadgerDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
