package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
)

// ProxyAuthHeader carries the proxy token on every request
const ProxyAuthHeader = "X-PROXY-AUTH"

// StatusError is returned for non-2xx proxy responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("proxy returned HTTP %d: %s", e.Code, e.Body)
}

type proxyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type proxyChatRequest struct {
	Model    string         `json:"model"`
	Stream   bool           `json:"stream"`
	Messages []proxyMessage `json:"messages"`
	Options  map[string]int `json:"options,omitempty"`
}

type proxyChatResponse struct {
	Message *proxyMessage `json:"message"`
	Choices []struct {
		Message proxyMessage `json:"message"`
	} `json:"choices"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

type proxyModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ProxyGenerator talks to the Ollama-compatible corporate proxy
type ProxyGenerator struct {
	baseURL    string
	token      string
	model      string
	numCtx     int
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     arbor.ILogger
}

// NewProxyGenerator creates a proxy client from the LLM settings. The HTTP
// client carries no timeout of its own; callers bound each request with ctx.
func NewProxyGenerator(cfg *common.LLMConfig, logger arbor.ILogger) *ProxyGenerator {
	interval := common.ParseDurationOr(cfg.RateLimit, time.Second)
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}

	return &ProxyGenerator{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.ProxyToken,
		model:      cfg.Model,
		numCtx:     cfg.NumCtx,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

// ModelName returns the configured model
func (p *ProxyGenerator) ModelName() string {
	return p.model
}

// Generate sends prompt as a single user message and returns the reply content
func (p *ProxyGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return p.Chat(ctx, []interfaces.Message{{Role: "user", Content: prompt}})
}

// Chat sends a non-streaming chat request
func (p *ProxyGenerator) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("messages cannot be empty for chat completion")
	}

	req := proxyChatRequest{
		Model:    p.model,
		Stream:   false,
		Messages: make([]proxyMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, proxyMessage{Role: m.Role, Content: m.Content})
	}
	if p.numCtx > 0 {
		req.Options = map[string]int{"num_ctx": p.numCtx}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	start := time.Now()
	data, err := p.do(ctx, http.MethodPost, "/api/chat", body)
	if err != nil {
		return "", err
	}

	var resp proxyChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode chat response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("proxy error: %s", resp.Error)
	}

	content := resp.Response
	switch {
	case resp.Message != nil:
		content = resp.Message.Content
	case len(resp.Choices) > 0:
		content = resp.Choices[0].Message.Content
	}

	p.logger.Debug().
		Str("model", p.model).
		Int("prompt_chars", len([]rune(messages[len(messages)-1].Content))).
		Int("reply_chars", len([]rune(content))).
		Dur("duration", time.Since(start)).
		Msg("Proxy chat completion finished")

	return content, nil
}

// ListModels returns the model identifiers served by the proxy
func (p *ProxyGenerator) ListModels(ctx context.Context) ([]string, error) {
	data, err := p.do(ctx, http.MethodGet, "/v1/models", nil)
	if err != nil {
		return nil, err
	}

	var resp proxyModelsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode model list: %w", err)
	}

	models := make([]string, 0, len(resp.Data))
	for _, m := range resp.Data {
		if m.ID != "" {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

func (p *ProxyGenerator) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.token != "" {
		req.Header.Set(ProxyAuthHeader, p.token)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proxy request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 500)}
	}
	return data, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
