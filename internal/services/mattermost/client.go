// Package mattermost implements the chat transport over the Mattermost v4
// REST API plus its websocket event stream.
package mattermost

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/httpclient"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
)

const apiPrefix = "/api/v4"

var _ interfaces.ChatTransport = (*Client)(nil)

// APIError is a non-2xx answer of the Mattermost API
type APIError struct {
	StatusCode int    `json:"status_code"`
	ID         string `json:"id"`
	Message    string `json:"message"`
	Endpoint   string `json:"-"`
}

func (e *APIError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("mattermost %s: HTTP %d %s (%s)", e.Endpoint, e.StatusCode, e.Message, e.ID)
	}
	return fmt.Sprintf("mattermost %s: HTTP %d %s", e.Endpoint, e.StatusCode, e.Message)
}

// Client is a Mattermost API v4 client
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger

	mu    sync.RWMutex
	token string
}

// NewClient creates a client from the chat server settings
func NewClient(cfg *common.MattermostConfig, logger arbor.ILogger) *Client {
	interval := common.ParseDurationOr(cfg.RateLimit, 50*time.Millisecond)

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		username:   cfg.Username,
		password:   cfg.Password,
		token:      cfg.Token,
		httpClient: httpclient.NewHTTPClient(common.ParseDurationOr(cfg.Timeout, 30*time.Second), cfg.SSLVerify),
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		logger:     logger,
	}
}

// BaseURL returns the server root without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Token returns the session or access token in use
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login authenticates with username and password when no token is configured,
// then verifies the session.
func (c *Client) Login(ctx context.Context) error {
	if c.Token() == "" {
		if c.username == "" || c.password == "" {
			return fmt.Errorf("mattermost login requires a token or username and password")
		}

		body, err := json.Marshal(map[string]string{"login_id": c.username, "password": c.password})
		if err != nil {
			return err
		}
		resp, err := c.do(ctx, http.MethodPost, "/users/login", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("mattermost login failed: %w", err)
		}
		token := resp.Header.Get("Token")
		resp.Body.Close()
		if token == "" {
			return fmt.Errorf("mattermost login returned no session token")
		}

		c.mu.Lock()
		c.token = token
		c.mu.Unlock()
	}

	me, err := c.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("mattermost session check failed: %w", err)
	}

	c.logger.Info().Str("user", me.Username).Str("user_id", me.ID).Msg("Logged in to Mattermost")
	return nil
}

// GetMe returns the authenticated account
func (c *Client) GetMe(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.getJSON(ctx, "/users/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// GetTeamsForUser lists the teams of a user
func (c *Client) GetTeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	var teams []models.Team
	if err := c.getJSON(ctx, "/users/"+url.PathEscape(userID)+"/teams", &teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// GetChannelsForTeamForUser lists the channels of a user in a team
func (c *Client) GetChannelsForTeamForUser(ctx context.Context, userID, teamID string) ([]models.Channel, error) {
	var channels []models.Channel
	path := fmt.Sprintf("/users/%s/teams/%s/channels", url.PathEscape(userID), url.PathEscape(teamID))
	if err := c.getJSON(ctx, path, &channels); err != nil {
		return nil, err
	}
	return channels, nil
}

type postList struct {
	Order []string               `json:"order"`
	Posts map[string]models.Post `json:"posts"`
}

// GetPostsSince returns channel posts changed after sinceMillis, oldest first
func (c *Client) GetPostsSince(ctx context.Context, channelID string, sinceMillis int64) ([]models.Post, error) {
	path := fmt.Sprintf("/channels/%s/posts?since=%s", url.PathEscape(channelID), strconv.FormatInt(sinceMillis, 10))

	var list postList
	if err := c.getJSON(ctx, path, &list); err != nil {
		return nil, err
	}

	posts := make([]models.Post, 0, len(list.Posts))
	for _, p := range list.Posts {
		posts = append(posts, p)
	}
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].CreateAt < posts[j].CreateAt })
	return posts, nil
}

type createPostRequest struct {
	ChannelID string         `json:"channel_id"`
	Message   string         `json:"message"`
	FileIDs   []string       `json:"file_ids,omitempty"`
	Props     map[string]any `json:"props,omitempty"`
}

// CreatePost sends a message and returns the new post id. Attachments are
// rendered as Mattermost message attachments.
func (c *Client) CreatePost(ctx context.Context, post models.OutgoingPost) (string, error) {
	req := createPostRequest{
		ChannelID: post.ChannelID,
		Message:   post.Message,
		FileIDs:   post.FileIDs,
	}
	if len(post.Attachments) > 0 {
		req.Props = map[string]any{"attachments": post.Attachments}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode post: %w", err)
	}

	var created models.Post
	if err := c.sendJSON(ctx, http.MethodPost, "/posts", body, &created); err != nil {
		return "", err
	}
	return created.ID, nil
}

// UploadFile uploads data into a channel and returns the file id
func (c *Client) UploadFile(ctx context.Context, channelID, fileName string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("channel_id", channelID); err != nil {
		return "", err
	}
	part, err := writer.CreateFormFile("files", fileName)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/files", writer.FormDataContentType(), &buf)
	if err != nil {
		return "", fmt.Errorf("file upload failed: %w", err)
	}
	defer resp.Body.Close()

	var uploaded struct {
		FileInfos []models.FileInfo `json:"file_infos"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return "", fmt.Errorf("failed to decode upload response: %w", err)
	}
	if len(uploaded.FileInfos) == 0 {
		return "", fmt.Errorf("upload response carried no file info")
	}

	c.logger.Debug().Str("file", fileName).Int("bytes", len(data)).Msg("File uploaded")
	return uploaded.FileInfos[0].ID, nil
}

// GetFile downloads the content of an uploaded file
func (c *Client) GetFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID), "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// GetFileInfo returns metadata of an uploaded file
func (c *Client) GetFileInfo(ctx context.Context, fileID string) (*models.FileInfo, error) {
	var info models.FileInfo
	if err := c.getJSON(ctx, "/files/"+url.PathEscape(fileID)+"/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Ping checks the server is reachable
func (c *Client) Ping(ctx context.Context) error {
	var status struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/system/ping", &status); err != nil {
		return err
	}
	if !strings.EqualFold(status.Status, "OK") {
		return fmt.Errorf("mattermost ping status %q", status.Status)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body []byte, out any) error {
	resp, err := c.do(ctx, method, path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// do performs a rate-limited request. Non-2xx answers become *APIError and
// the body is closed; otherwise the caller owns the body.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mattermost %s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

		apiErr := &APIError{StatusCode: resp.StatusCode, Endpoint: path}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		apiErr.StatusCode = resp.StatusCode
		return nil, apiErr
	}

	return resp, nil
}
