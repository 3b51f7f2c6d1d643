package interfaces

import (
	"context"

	"github.com/ternarybob/dossier/internal/models"
)

// ChatTransport is the chat platform surface used by the bot
type ChatTransport interface {
	Login(ctx context.Context) error
	GetMe(ctx context.Context) (*models.User, error)
	GetTeamsForUser(ctx context.Context, userID string) ([]models.Team, error)
	GetChannelsForTeamForUser(ctx context.Context, userID, teamID string) ([]models.Channel, error)
	// GetPostsSince returns posts of a channel created or edited after sinceMillis
	GetPostsSince(ctx context.Context, channelID string, sinceMillis int64) ([]models.Post, error)
	CreatePost(ctx context.Context, post models.OutgoingPost) (string, error)
	UploadFile(ctx context.Context, channelID, fileName string, data []byte) (string, error)
	GetFile(ctx context.Context, fileID string) ([]byte, error)
	GetFileInfo(ctx context.Context, fileID string) (*models.FileInfo, error)
	Ping(ctx context.Context) error
}

// PostHandler consumes one deduplicated incoming post
type PostHandler func(ctx context.Context, post models.Post)

// EventSource delivers incoming posts to a handler until ctx is cancelled.
// Polling and push transports implement it so the conversation logic does not
// depend on how messages arrive.
type EventSource interface {
	Run(ctx context.Context, handler PostHandler) error
}
