package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/app"
	"github.com/ternarybob/dossier/internal/common"
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

const shutdownTimeout = 10 * time.Second

var (
	// Command-line flags
	configFiles  configPaths // Multiple -config flags supported
	envFile      = flag.String("env", ".env", "Environment file loaded before configuration")
	logLevel     = flag.String("log-level", "", "Log level (overrides config)")
	checkOnly    = flag.Bool("check", false, "Verify Mattermost, Confluence and LLM connectivity, then exit")
	listModels   = flag.Bool("models", false, "List models served by the LLM endpoint, then exit")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	defer common.RecoverWithCrashFile()

	flag.Parse()
	common.LoadVersionFromFile()

	if *showVersion || *showVersionV {
		fmt.Printf("Dossier version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load .env and config (defaults -> file1 -> file2 -> ... -> env)
	// 2. Apply CLI overrides (highest priority)
	// 3. Validate
	// 4. Initialize logger
	// 5. Print banner
	tempLogger := arbor.NewLogger()

	if err := common.LoadDotEnv(*envFile); err != nil {
		tempLogger.Fatal().Err(err).Msg("Failed to load environment file")
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("dossier.toml"); err == nil {
			configFiles = append(configFiles, "dossier.toml")
		} else if _, err := os.Stat("deployments/local/dossier.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/dossier.toml")
		}
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		tempLogger.Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration files")
	}

	common.ApplyFlagOverrides(config, *logLevel)

	if err := config.Validate(); err != nil {
		tempLogger.Fatal().Err(err).Msg("Invalid configuration")
	}

	logger := common.InitLogger(config)
	common.InstallCrashHandler(config)
	common.PrintBanner(config, logger)

	logger.Debug().
		Str("mattermost_url", config.Mattermost.URL).
		Str("confluence_url", config.Confluence.BaseURL).
		Bool("confluence_credentials", config.HasConfluenceCredentials()).
		Str("llm_provider", string(config.LLM.Provider)).
		Str("llm_model", config.LLM.Model).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Resolved configuration (sanitized)")

	logger.Info().
		Strs("config_files", configFiles).
		Str("event_source", config.Chat.EventSource).
		Msg("Application configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
	}
	defer func() {
		if err := application.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close application")
		}
	}()

	switch {
	case *listModels:
		models, err := application.ListModels(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to list models")
			os.Exit(1)
		}
		for _, model := range models {
			fmt.Println(model)
		}
		return
	case *checkOnly:
		if err := application.Check(ctx); err != nil {
			logger.Error().Err(err).Msg("Connectivity check failed")
			os.Exit(1)
		}
		logger.Info().Msg("Connectivity check passed")
		return
	}

	done := make(chan error, 1)
	go func() {
		done <- application.Run(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error().Err(err).Msg("Bot stopped with error")
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info().Msg("Interrupt received, shutting down...")
		select {
		case <-done:
		case <-time.After(shutdownTimeout):
			logger.Warn().Dur("timeout", shutdownTimeout).Msg("Event loop did not stop in time")
		}
	}

	logger.Info().Msg("Bot stopped")
}
