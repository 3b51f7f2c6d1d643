package events

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/ternarybob/dossier/internal/services/mattermost"
)

const maxReconnectBackoff = time.Minute

var _ interfaces.EventSource = (*WebSocketSource)(nil)

// PostStream is a push connection delivering posted events until it drops
type PostStream interface {
	Listen(ctx context.Context, onPost func(mattermost.PostedEvent)) error
}

// WebSocketSource dispatches posts pushed over the Mattermost event stream.
// Direct messages are always delivered; posts elsewhere only when they
// mention the bot.
type WebSocketSource struct {
	transport    interfaces.ChatTransport
	stream       PostStream
	dedup        *Deduplicator
	errorBackoff time.Duration
	logger       arbor.ILogger
}

// NewWebSocketSource creates a push-based event source
func NewWebSocketSource(transport interfaces.ChatTransport, stream PostStream, cfg *common.ChatConfig, logger arbor.ILogger) (*WebSocketSource, error) {
	dedup, err := NewDeduplicator(cfg.DedupSize)
	if err != nil {
		return nil, err
	}
	return &WebSocketSource{
		transport:    transport,
		stream:       stream,
		dedup:        dedup,
		errorBackoff: common.ParseDurationOr(cfg.ErrorBackoff, 5*time.Second),
		logger:       logger,
	}, nil
}

// Run listens until ctx is cancelled, reconnecting with a doubling backoff
func (s *WebSocketSource) Run(ctx context.Context, handler interfaces.PostHandler) error {
	me, err := s.transport.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to identify bot account: %w", err)
	}

	backoff := s.errorBackoff
	for {
		err := s.stream.Listen(ctx, func(e mattermost.PostedEvent) {
			s.deliver(ctx, me.ID, e, handler)
			backoff = s.errorBackoff
		})
		if ctx.Err() != nil {
			s.logger.Info().Msg("Event stream stopped")
			return nil
		}

		s.logger.Warn().Err(err).Dur("backoff", backoff).Msg("Event stream disconnected, reconnecting")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxReconnectBackoff)
	}
}

func (s *WebSocketSource) deliver(ctx context.Context, botID string, e mattermost.PostedEvent, handler interfaces.PostHandler) {
	var err error
	defer common.CatchPanic(s.logger, "eventDispatch", &err)

	if !isForBot(e, botID) || s.dedup.Seen(e.Post.ID) {
		return
	}
	handler(ctx, e.Post)
}

func isForBot(e mattermost.PostedEvent, botID string) bool {
	if e.Post.UserID == botID {
		return false
	}
	return e.ChannelType == models.ChannelTypeDirect || slices.Contains(e.Mentions, botID)
}
