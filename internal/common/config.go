package common

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Mattermost  MattermostConfig `toml:"mattermost"`
	Chat        ChatConfig       `toml:"chat"`
	Confluence  ConfluenceConfig `toml:"confluence"`
	LLM         LLMConfig        `toml:"llm"`
	Gemini      GeminiConfig     `toml:"gemini"`
	Claude      ClaudeConfig     `toml:"claude"`
	Analysis    AnalysisConfig   `toml:"analysis"`
	Report      ReportConfig     `toml:"report"`
	Sessions    SessionsConfig   `toml:"sessions"`
	Logging     LoggingConfig    `toml:"logging"`
}

// MattermostConfig contains chat server connection settings
type MattermostConfig struct {
	URL       string `toml:"url" validate:"required,url"` // Server URL, e.g. https://chat.example.com
	Token     string `toml:"token"`                       // Personal access / bot token (preferred over password login)
	Team      string `toml:"team"`                        // Optional team name filter
	Username  string `toml:"username"`                    // Bot username, also used for @mentions
	Password  string `toml:"password"`                    // Used only when Token is empty
	SSLVerify bool   `toml:"ssl_verify"`                  // Verify TLS certificates (default: true)
	Timeout   string `toml:"timeout"`                     // HTTP timeout (default: "30s")
	RateLimit string `toml:"rate_limit"`                  // Minimum interval between API calls (default: "50ms")
}

// ChatConfig controls how incoming messages are received
type ChatConfig struct {
	EventSource    string `toml:"event_source" validate:"oneof=poll websocket"` // "poll" (default) or "websocket"
	PollInterval   string `toml:"poll_interval"`                                // Fixed poll interval (default: "2s")
	ErrorBackoff   string `toml:"error_backoff"`                                // Sleep after a failed cycle (default: "5s")
	ChannelRefresh string `toml:"channel_refresh"`                              // Cron spec for channel re-listing (default: "@every 30s")
	DedupSize      int    `toml:"dedup_size" validate:"gte=10"`                 // Processed post ids remembered (default: 1000)
}

// ConfluenceConfig contains wiki connection and crawl settings
type ConfluenceConfig struct {
	BaseURL         string            `toml:"base_url" validate:"required,url"` // Wiki root (default: https://confluence.1solution.ru/)
	Username        string            `toml:"username"`
	Password        string            `toml:"password"` // API token or password
	MaxDepth        int               `toml:"max_depth" validate:"gte=1,lte=20"`
	Timeout         string            `toml:"timeout"`    // HTTP timeout (default: "60s")
	RateLimit       string            `toml:"rate_limit"` // Minimum interval between API calls (default: "100ms")
	KnownShortLinks map[string]string `toml:"known_short_links"`
}

// LLMProvider represents the text-generation backend
type LLMProvider string

const (
	// LLMProviderProxy uses the corporate Ollama-compatible proxy
	LLMProviderProxy LLMProvider = "proxy"
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
)

// LLMConfig contains the text-generation endpoint settings
type LLMConfig struct {
	Provider       LLMProvider `toml:"provider" validate:"oneof=proxy gemini claude"`
	BaseURL        string      `toml:"base_url" validate:"required,url"` // Proxy root (default: https://llm.1bitai.ru)
	ProxyToken     string      `toml:"proxy_token"`                      // Sent as X-PROXY-AUTH
	Model          string      `toml:"model"`                            // default: llama3.3:70b
	NumCtx         int         `toml:"num_ctx" validate:"gte=0"`         // Context window option (default: 32768)
	RequestTimeout string      `toml:"request_timeout"`                  // Per batch (default: "5m")
	RateLimit      string      `toml:"rate_limit"`                       // Minimum interval between calls (default: "1s")
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// AnalysisConfig controls context budgeting and batching
type AnalysisConfig struct {
	BatchSize         int `toml:"batch_size" validate:"gte=1"`            // Artifacts per request (default: 15)
	DocumentCharLimit int `toml:"document_char_limit" validate:"gte=100"` // Per-document ceiling in characters (default: 8000)
	ContextCharLimit  int `toml:"context_char_limit" validate:"gte=1000"` // Whole-context ceiling in characters (default: 120000)
}

// ReportConfig controls the PDF report
type ReportConfig struct {
	FontPaths     []string `toml:"font_paths"`      // Candidate UTF-8 TTF fonts, first existing wins
	BoldFontPaths []string `toml:"bold_font_paths"` // Candidate bold variants
	SummaryLimit  int      `toml:"summary_limit"`   // Artifacts listed in the chat summary (default: 15)
}

// SessionsConfig selects the session store backend
type SessionsConfig struct {
	Backend string `toml:"backend" validate:"oneof=memory badger"` // "memory" (default) or "badger" (in-memory badger)
}

// LoggingConfig controls console and activity-log output
type LoggingConfig struct {
	Level        string   `toml:"level"`         // debug|info|warn|error
	Output       []string `toml:"output"`        // "stdout", "file"
	Dir          string   `toml:"dir"`           // Directory of the activity log
	ActivityFile string   `toml:"activity_file"` // Activity log file name (default: "bot.log")
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Mattermost: MattermostConfig{
			SSLVerify: true,
			Timeout:   "30s",
			RateLimit: "50ms",
		},
		Chat: ChatConfig{
			EventSource:    "poll",
			PollInterval:   "2s",
			ErrorBackoff:   "5s",
			ChannelRefresh: "@every 30s",
			DedupSize:      1000,
		},
		Confluence: ConfluenceConfig{
			BaseURL:   "https://confluence.1solution.ru/",
			MaxDepth:  5,
			Timeout:   "60s",
			RateLimit: "100ms",
			KnownShortLinks: map[string]string{
				"E_7iGQ": "434302483",
				"YYjiGQ": "434276449",
			},
		},
		LLM: LLMConfig{
			Provider:       LLMProviderProxy,
			BaseURL:        "https://llm.1bitai.ru",
			Model:          "llama3.3:70b",
			NumCtx:         32768,
			RequestTimeout: "5m",
			RateLimit:      "1s",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-3-flash-preview",
			Temperature: 0.2,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-3-5-20241022",
			MaxTokens:   8192,
			Temperature: 0.2,
		},
		Analysis: AnalysisConfig{
			BatchSize:         15,
			DocumentCharLimit: 8000,
			ContextCharLimit:  120000,
		},
		Report: ReportConfig{
			FontPaths: []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
				"/usr/share/fonts/dejavu/DejaVuSans.ttf",
				"/Library/Fonts/DejaVuSans.ttf",
				"C:\\Windows\\Fonts\\arial.ttf",
			},
			BoldFontPaths: []string{
				"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
				"/usr/share/fonts/dejavu/DejaVuSans-Bold.ttf",
				"/Library/Fonts/DejaVuSans-Bold.ttf",
				"C:\\Windows\\Fonts\\arialbd.ttf",
			},
			SummaryLimit: 15,
		},
		Sessions: SessionsConfig{
			Backend: "memory",
		},
		Logging: LoggingConfig{
			Level:        "info",
			Output:       []string{"stdout", "file"},
			Dir:          "./logs",
			ActivityFile: "bot.log",
		},
	}
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set in the environment win. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromFiles loads configuration from multiple files with priority: default -> file1 -> file2 -> ... -> env
// Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
// Variable names match the deployment .env files of the bot.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOSSIER_ENV"); env != "" {
		config.Environment = env
	}

	// Mattermost
	setString(&config.Mattermost.URL, "MATTERMOST_URL")
	setString(&config.Mattermost.Token, "MATTERMOST_TOKEN")
	setString(&config.Mattermost.Team, "MATTERMOST_TEAM")
	setString(&config.Mattermost.Username, "MATTERMOST_USERNAME")
	setString(&config.Mattermost.Password, "MATTERMOST_PASSWORD")
	if v := os.Getenv("MATTERMOST_SSL_VERIFY"); v != "" {
		config.Mattermost.SSLVerify = strings.EqualFold(strings.TrimSpace(v), "true")
	}
	if config.Mattermost.URL != "" && !strings.HasPrefix(config.Mattermost.URL, "http") {
		config.Mattermost.URL = "https://" + config.Mattermost.URL
	}

	// Chat
	setString(&config.Chat.EventSource, "DOSSIER_EVENT_SOURCE")
	setString(&config.Chat.PollInterval, "DOSSIER_POLL_INTERVAL")

	// Confluence
	setString(&config.Confluence.BaseURL, "CONFLUENCE_URL")
	setString(&config.Confluence.Username, "CONFLUENCE_USERNAME")
	setString(&config.Confluence.Password, "CONFLUENCE_PASSWORD")
	if v := os.Getenv("CONFLUENCE_MAX_DEPTH"); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			config.Confluence.MaxDepth = d
		}
	}
	if config.Confluence.BaseURL != "" && !strings.HasSuffix(config.Confluence.BaseURL, "/") {
		config.Confluence.BaseURL += "/"
	}

	// LLM
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		config.LLM.Provider = LLMProvider(strings.ToLower(v))
	}
	setString(&config.LLM.BaseURL, "LLM_BASE_URL")
	setString(&config.LLM.ProxyToken, "LLM_PROXY_TOKEN")
	setString(&config.LLM.Model, "LLM_MODEL")
	if v := os.Getenv("LLM_NUM_CTX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.LLM.NumCtx = n
		}
	}
	config.LLM.BaseURL = strings.TrimRight(config.LLM.BaseURL, "/")

	// Alternate providers
	setString(&config.Claude.APIKey, "ANTHROPIC_API_KEY")
	setString(&config.Gemini.APIKey, "GEMINI_API_KEY")

	// Logging
	setString(&config.Logging.Level, "DOSSIER_LOG_LEVEL")
}

func setString(dst *string, envName string) {
	if v := os.Getenv(envName); v != "" {
		*dst = v
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, logLevel string) {
	if logLevel != "" {
		config.Logging.Level = logLevel
	}
}

// Validate checks struct constraints and the credential combinations
// that cannot be expressed as tags.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Mattermost.Token == "" && (c.Mattermost.Username == "" || c.Mattermost.Password == "") {
		return fmt.Errorf("invalid configuration: mattermost token or username/password required")
	}

	switch c.LLM.Provider {
	case LLMProviderProxy:
		if c.LLM.ProxyToken == "" {
			return fmt.Errorf("invalid configuration: LLM_PROXY_TOKEN required for the proxy provider")
		}
	case LLMProviderClaude:
		if c.Claude.APIKey == "" {
			return fmt.Errorf("invalid configuration: ANTHROPIC_API_KEY required for the claude provider")
		}
	case LLMProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("invalid configuration: GEMINI_API_KEY required for the gemini provider")
		}
	}

	if _, err := time.ParseDuration(c.Chat.PollInterval); err != nil {
		return fmt.Errorf("invalid configuration: chat.poll_interval: %w", err)
	}

	return nil
}

// HasConfluenceCredentials reports whether authenticated wiki calls are possible
func (c *Config) HasConfluenceCredentials() bool {
	return c.Confluence.Username != "" && c.Confluence.Password != ""
}

// ParseDurationOr parses s, returning fallback when s is empty or invalid
func ParseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
