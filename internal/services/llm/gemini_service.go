package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
)

// GeminiGenerator generates replies with the Google Gemini API
type GeminiGenerator struct {
	config *common.GeminiConfig
	logger arbor.ILogger
	client *genai.Client
}

// convertMessagesToGemini converts []interfaces.Message to Gemini Content format.
// System messages are returned separately for SystemInstruction.
func convertMessagesToGemini(messages []interfaces.Message) ([]*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, "", fmt.Errorf("messages cannot be empty")
	}

	contents := make([]*genai.Content, 0, len(messages))
	var systemText string
	hasUserMessage := false
	for _, msg := range messages {
		var role string
		switch msg.Role {
		case "system":
			if systemText == "" {
				systemText = msg.Content
			}
			continue
		case "assistant":
			role = genai.RoleModel
		default:
			hasUserMessage = true
			role = genai.RoleUser
		}

		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
		})
	}
	if !hasUserMessage {
		return nil, "", fmt.Errorf("at least one message must have role 'user'")
	}

	return contents, systemText, nil
}

// NewGeminiGenerator creates a Gemini generator. An API key is required.
func NewGeminiGenerator(ctx context.Context, cfg *common.GeminiConfig, logger arbor.ILogger) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Google API key is required for the gemini provider (set GEMINI_API_KEY or gemini.api_key)")
	}

	resolved := *cfg
	if resolved.Model == "" {
		resolved.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", resolved.Model).
		Float32("temperature", resolved.Temperature).
		Msg("Gemini generator initialized")

	return &GeminiGenerator{config: &resolved, logger: logger, client: client}, nil
}

// ModelName returns the configured Gemini model
func (s *GeminiGenerator) ModelName() string {
	return s.config.Model
}

// Generate sends prompt as a single user message
func (s *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.Chat(ctx, []interfaces.Message{{Role: "user", Content: prompt}})
}

// Chat generates a completion for the conversation
func (s *GeminiGenerator) Chat(ctx context.Context, messages []interfaces.Message) (string, error) {
	contents, systemText, err := convertMessagesToGemini(messages)
	if err != nil {
		return "", fmt.Errorf("failed to convert messages to Gemini format: %w", err)
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(s.config.Temperature),
	}
	if systemText != "" {
		config.SystemInstruction = genai.NewContentFromText(systemText, genai.RoleUser)
	}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(ctx, s.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	// Take the first candidate that carries text
	var response strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				response.WriteString(part.Text)
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("reply_chars", response.Len()).
		Dur("duration", time.Since(start)).
		Msg("Gemini completion finished")

	return response.String(), nil
}
