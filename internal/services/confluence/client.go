// Package confluence talks to the Confluence REST API: short-link
// resolution, page tree traversal and attachment download.
package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default HTTP timeout
	DefaultTimeout = 60 * time.Second

	// DefaultRateInterval is the default minimum interval between requests
	DefaultRateInterval = 100 * time.Millisecond

	childPageLimit  = 200
	attachmentLimit = 200
)

// Client is a Confluence REST client authenticated with basic auth
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

// ClientOption configures the Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the minimum interval between requests
func WithRateLimit(interval time.Duration) ClientOption {
	return func(c *Client) {
		if interval <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// NewClient creates a client for the wiki rooted at baseURL
func NewClient(baseURL, username, password string, opts ...ClientOption) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	c := &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Every(DefaultRateInterval), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

var _ interfaces.WikiService = (*Client)(nil)

// HasCredentials reports whether a username and password are configured
func (c *Client) HasCredentials() bool {
	return c.username != "" && c.password != ""
}

// BaseURL returns the wiki root with a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs an authenticated GET of a path relative to the wiki root
func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + strings.TrimPrefix(path, "/")
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}
	return c.getURL(ctx, reqURL, path)
}

func (c *Client) getURL(ctx context.Context, reqURL, endpoint string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.HasCredentials() {
		req.SetBasicAuth(c.username, c.password)
	}

	if c.logger != nil {
		c.logger.Debug().Str("url", reqURL).Msg("Confluence API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body), Endpoint: endpoint}
	}

	return body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, result interface{}) error {
	body, err := c.get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

type contentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
}

type listResponse struct {
	Results []models.WikiContent `json:"results"`
	Size    int                  `json:"size"`
}

type attachmentResponse struct {
	Results []struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Metadata struct {
			MediaType string `json:"mediaType"`
		} `json:"metadata"`
		Links struct {
			Download string `json:"download"`
		} `json:"_links"`
	} `json:"results"`
}

// GetPage fetches a page with its storage-format body
func (c *Client) GetPage(ctx context.Context, pageID string) (*models.WikiPage, error) {
	var resp contentResponse
	params := url.Values{"expand": {"body.storage"}}
	if err := c.getJSON(ctx, "rest/api/content/"+url.PathEscape(pageID), params, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch page %s: %w", pageID, err)
	}

	id := resp.ID
	if id == "" {
		id = pageID
	}
	return &models.WikiPage{ID: id, Title: resp.Title, Body: resp.Body.Storage.Value}, nil
}

// PageExists reports whether pageID answers with 200.
// Non-success statuses are reported as false without an error.
func (c *Client) PageExists(ctx context.Context, pageID string) (bool, error) {
	params := url.Values{"expand": {"body.storage"}}
	_, err := c.get(ctx, "rest/api/content/"+url.PathEscape(pageID), params)
	if err == nil {
		return true, nil
	}
	if StatusCode(err) != 0 {
		return false, nil
	}
	return false, err
}

// ListPages returns one page of the global page listing
func (c *Client) ListPages(ctx context.Context, start, limit int, expand string) ([]models.WikiContent, error) {
	params := url.Values{
		"type":  {"page"},
		"limit": {fmt.Sprint(limit)},
	}
	if start > 0 {
		params.Set("start", fmt.Sprint(start))
	}
	if expand != "" {
		params.Set("expand", expand)
	}

	var resp listResponse
	if err := c.getJSON(ctx, "rest/api/content", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list pages (start %d): %w", start, err)
	}
	return resp.Results, nil
}

// SearchPages runs a CQL query
func (c *Client) SearchPages(ctx context.Context, cql string, limit int, expand string) ([]models.WikiContent, error) {
	params := url.Values{
		"cql":   {cql},
		"limit": {fmt.Sprint(limit)},
	}
	if expand != "" {
		params.Set("expand", expand)
	}

	var resp listResponse
	if err := c.getJSON(ctx, "rest/api/content/search", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to search pages: %w", err)
	}
	return resp.Results, nil
}

// GetChildPages returns the direct children of a page in server order.
// Depth is left zero; the crawler assigns it.
func (c *Client) GetChildPages(ctx context.Context, pageID string) ([]models.WikiPageNode, error) {
	params := url.Values{"limit": {fmt.Sprint(childPageLimit)}}

	var resp listResponse
	if err := c.getJSON(ctx, "rest/api/content/"+url.PathEscape(pageID)+"/child/page", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list children of %s: %w", pageID, err)
	}

	nodes := make([]models.WikiPageNode, 0, len(resp.Results))
	for _, r := range resp.Results {
		nodes = append(nodes, models.WikiPageNode{ID: r.ID, Title: r.Title})
	}
	return nodes, nil
}

// GetAttachments returns every attachment of a page, unfiltered
func (c *Client) GetAttachments(ctx context.Context, pageID string) ([]models.WikiAttachment, error) {
	params := url.Values{"limit": {fmt.Sprint(attachmentLimit)}}

	var resp attachmentResponse
	if err := c.getJSON(ctx, "rest/api/content/"+url.PathEscape(pageID)+"/child/attachment", params, &resp); err != nil {
		return nil, fmt.Errorf("failed to list attachments of %s: %w", pageID, err)
	}

	attachments := make([]models.WikiAttachment, 0, len(resp.Results))
	for _, r := range resp.Results {
		attachments = append(attachments, models.WikiAttachment{
			ID:           r.ID,
			Title:        r.Title,
			MediaType:    strings.ToLower(r.Metadata.MediaType),
			DownloadLink: r.Links.Download,
		})
	}
	return attachments, nil
}

// DownloadAttachment fetches attachment bytes from a _links.download path
func (c *Client) DownloadAttachment(ctx context.Context, downloadLink string) ([]byte, error) {
	reqURL := downloadLink
	if !strings.HasPrefix(downloadLink, "http://") && !strings.HasPrefix(downloadLink, "https://") {
		reqURL = strings.TrimRight(c.baseURL, "/") + "/" + strings.TrimPrefix(downloadLink, "/")
	}

	data, err := c.getURL(ctx, reqURL, downloadLink)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", downloadLink, err)
	}
	return data, nil
}
