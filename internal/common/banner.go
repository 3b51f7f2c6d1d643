package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and the resolved endpoints
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Dossier", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Str("mattermost", config.Mattermost.URL).
		Str("confluence", config.Confluence.BaseURL).
		Str("llm_provider", string(config.LLM.Provider)).
		Str("llm_model", config.LLM.Model).
		Str("event_source", config.Chat.EventSource).
		Msg("Dossier starting")

	if !config.Mattermost.SSLVerify {
		logger.Warn().Msg("TLS certificate verification disabled for Mattermost")
	}
	if !config.HasConfluenceCredentials() {
		logger.Warn().Msg("Confluence credentials not configured - wiki pages will be reported as unavailable")
	}
}
