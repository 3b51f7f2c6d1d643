package mattermost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/models"
)

const (
	eventPosted        = "posted"
	wsHandshakeTimeout = 15 * time.Second
)

// PostedEvent is a post delivered over the event stream
type PostedEvent struct {
	Post        models.Post
	ChannelType string
	// Mentions holds the user ids mentioned in the post
	Mentions []string
}

type wsEvent struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data"`
	Seq   int64          `json:"seq"`
}

type wsChallenge struct {
	Seq    int64             `json:"seq"`
	Action string            `json:"action"`
	Data   map[string]string `json:"data"`
}

// WebSocketURL derives the event stream endpoint from the server URL
func (c *Client) WebSocketURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + apiPrefix + "/websocket"
}

// Listen opens the event stream, authenticates and calls onPost for every
// posted event. It returns when ctx is done or the connection drops;
// reconnecting is up to the caller.
func (c *Client) Listen(ctx context.Context, onPost func(PostedEvent)) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsHandshakeTimeout}
	if transport, ok := c.httpClient.Transport.(*http.Transport); ok && transport.TLSClientConfig != nil {
		dialer.TLSClientConfig = transport.TLSClientConfig.Clone()
	}

	header := http.Header{}
	token := c.Token()
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := dialer.DialContext(ctx, c.WebSocketURL(), header)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}
	defer conn.Close()

	challenge := wsChallenge{Seq: 1, Action: "authentication_challenge", Data: map[string]string{"token": token}}
	if err := conn.WriteJSON(challenge); err != nil {
		return fmt.Errorf("websocket authentication failed: %w", err)
	}

	c.logger.Info().Str("url", c.WebSocketURL()).Msg("Mattermost event stream connected")

	done := make(chan struct{})
	defer close(done)
	common.SafeGo(c.logger, "websocketCloser", func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	})

	for {
		var event wsEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("websocket read failed: %w", err)
		}

		if event.Event != eventPosted {
			continue
		}

		posted, err := decodePosted(event.Data)
		if err != nil {
			c.logger.Warn().Err(err).Int64("seq", event.Seq).Msg("Skipping malformed posted event")
			continue
		}
		onPost(posted)
	}
}

// decodePosted unpacks a posted event; the post and mentions arrive as
// JSON-encoded strings inside data.
func decodePosted(data map[string]any) (PostedEvent, error) {
	var event PostedEvent

	raw, _ := data["post"].(string)
	if raw == "" {
		return event, fmt.Errorf("posted event without post")
	}
	if err := json.Unmarshal([]byte(raw), &event.Post); err != nil {
		return event, fmt.Errorf("failed to decode post: %w", err)
	}

	event.ChannelType, _ = data["channel_type"].(string)

	if mentions, _ := data["mentions"].(string); mentions != "" {
		if err := json.Unmarshal([]byte(mentions), &event.Mentions); err != nil {
			return event, fmt.Errorf("failed to decode mentions: %w", err)
		}
	}
	return event, nil
}
