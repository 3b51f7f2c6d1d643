// Package llm provides the text-generation backends used by the artifact
// sweep: the corporate Ollama-compatible proxy, Anthropic Claude and Google
// Gemini.
package llm

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
)

var (
	_ interfaces.TextGenerator = (*ProxyGenerator)(nil)
	_ interfaces.ModelLister   = (*ProxyGenerator)(nil)
	_ interfaces.TextGenerator = (*ClaudeGenerator)(nil)
	_ interfaces.TextGenerator = (*GeminiGenerator)(nil)
)

// NewGenerator creates the generator selected by cfg.LLM.Provider
func NewGenerator(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (interfaces.TextGenerator, error) {
	logger.Info().Str("provider", string(cfg.LLM.Provider)).Msg("Initializing text generator")

	switch cfg.LLM.Provider {
	case common.LLMProviderProxy, "":
		return NewProxyGenerator(&cfg.LLM, logger), nil
	case common.LLMProviderClaude:
		return NewClaudeGenerator(&cfg.Claude, logger)
	case common.LLMProviderGemini:
		return NewGeminiGenerator(ctx, &cfg.Gemini, logger)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLM.Provider)
	}
}
