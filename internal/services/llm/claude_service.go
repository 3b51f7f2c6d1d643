package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
)

// ClaudeGenerator generates replies with the Anthropic Claude API
type ClaudeGenerator struct {
	config    *common.ClaudeConfig
	logger    arbor.ILogger
	client    anthropic.Client
	maxTokens int
}

// convertMessagesToClaude converts []interfaces.Message to Claude MessageParam format.
// System messages are returned separately for the System parameter.
func convertMessagesToClaude(messages []interfaces.Message) ([]anthropic.MessageParam, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	claudeMessages := make([]anthropic.MessageParam, 0, len(messages))
	var systemText string
	hasUserMessage := false
	for _, msg := range messages {
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
		case "assistant":
			claudeMessages = append(claudeMessages, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		default:
			hasUserMessage = true
			claudeMessages = append(claudeMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		}
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	return claudeMessages, systemText, nil
}

// NewClaudeGenerator creates a Claude generator. An API key is required.
func NewClaudeGenerator(cfg *common.ClaudeConfig, logger arbor.ILogger) (*ClaudeGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required for the claude provider (set ANTHROPIC_API_KEY or claude.api_key)")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	resolved := *cfg
	resolved.Model = model

	logger.Debug().
		Str("model", model).
		Float32("temperature", cfg.Temperature).
		Int("max_tokens", maxTokens).
		Msg("Claude generator initialized")

	return &ClaudeGenerator{
		config:    &resolved,
		logger:    logger,
		client:    anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		maxTokens: maxTokens,
	}, nil
}

// ModelName returns the configured Claude model
func (s *ClaudeGenerator) ModelName() string {
	return s.config.Model
}

// Generate sends prompt as a single user message
func (s *ClaudeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.Chat(ctx, []interfaces.Message{{Role: "user", Content: prompt}})
}

// Chat generates a completion for the conversation
func (s *ClaudeGenerator) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	claudeMessages, systemText, err := convertMessagesToClaude(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Claude format: %w", err)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(s.maxTokens),
		Messages:  claudeMessages,
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}
	if systemText != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: systemText},
		}
	}

	start := time.Now()
	resp, err := s.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("reply_chars", response.Len()).
		Dur("duration", time.Since(start)).
		Msg("Claude completion finished")

	return response.String(), nil
}
