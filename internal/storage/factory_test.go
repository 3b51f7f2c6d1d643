package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/models"
)

func TestSessionStores(t *testing.T) {
	for _, backend := range []string{"memory", "badger"} {
		t.Run(backend, func(t *testing.T) {
			cfg := common.NewDefaultConfig()
			cfg.Sessions.Backend = backend

			store, err := NewSessionStore(arbor.NewLogger(), cfg)
			require.NoError(t, err)
			defer store.Close()

			ctx := context.Background()

			session, err := store.GetOrCreate(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, models.StateInitial, session.State)
			assert.Equal(t, "u1", session.UserID)

			session.State = models.StateWaitingDocuments
			session.ProjectTypes = []string{"DWH"}
			session.Documents = []models.RawInput{{Kind: models.DocumentKindFile, Name: "a.pdf", Data: []byte("x")}}
			session.Normalized = []models.Document{{Name: "b.docx", Kind: models.DocumentKindFile, Text: "b", PageCount: 1}}
			require.NoError(t, store.Save(ctx, session))

			loaded, err := store.GetOrCreate(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, models.StateWaitingDocuments, loaded.State)
			assert.Equal(t, []string{"DWH"}, loaded.ProjectTypes)
			require.Len(t, loaded.Documents, 1)
			assert.Equal(t, "a.pdf", loaded.Documents[0].Name)
			require.Len(t, loaded.Normalized, 1)
			assert.Equal(t, "b", loaded.Normalized[0].Text)

			other, err := store.GetOrCreate(ctx, "u2")
			require.NoError(t, err)
			assert.Equal(t, models.StateInitial, other.State)

			require.NoError(t, store.Reset(ctx, "u1"))
			reset, err := store.GetOrCreate(ctx, "u1")
			require.NoError(t, err)
			assert.Equal(t, models.StateInitial, reset.State)
			assert.Empty(t, reset.ProjectTypes)
			assert.Empty(t, reset.Documents)
			assert.Empty(t, reset.Normalized)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store, err := NewSessionStore(arbor.NewLogger(), common.NewDefaultConfig())
	require.NoError(t, err)
	ctx := context.Background()

	session, _ := store.GetOrCreate(ctx, "u1")
	session.State = models.StateAskingMoreDocuments

	fresh, _ := store.GetOrCreate(ctx, "u1")
	assert.Equal(t, models.StateInitial, fresh.State, "unsaved changes must not leak")
}

func TestUnknownBackend(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Sessions.Backend = "redis"
	_, err := NewSessionStore(arbor.NewLogger(), cfg)
	assert.Error(t, err)
}
