package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/sync/errgroup"

	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/httpclient"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/services/analysis"
	"github.com/ternarybob/dossier/internal/services/confluence"
	"github.com/ternarybob/dossier/internal/services/conversation"
	"github.com/ternarybob/dossier/internal/services/documents"
	"github.com/ternarybob/dossier/internal/services/events"
	"github.com/ternarybob/dossier/internal/services/extract"
	"github.com/ternarybob/dossier/internal/services/llm"
	"github.com/ternarybob/dossier/internal/services/mattermost"
	"github.com/ternarybob/dossier/internal/services/report"
	"github.com/ternarybob/dossier/internal/services/transform"
	"github.com/ternarybob/dossier/internal/storage"
)

const checkTimeout = 30 * time.Second

// App holds all bot components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Session state
	SessionStore interfaces.SessionStore

	// External services
	Chat      *mattermost.Client
	Wiki      *confluence.Client
	Generator interfaces.TextGenerator

	// Document pipeline
	Extractors *extract.Registry
	Transform  *transform.Service
	Resolver   *confluence.Resolver
	Crawler    *confluence.Crawler
	Normalizer *documents.Service
	Analyzer   *analysis.Engine
	Reporter   *report.Service

	// Conversation
	Machine     *conversation.Machine
	EventSource interfaces.EventSource
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info().
		Str("session_backend", cfg.Sessions.Backend).
		Str("event_source", cfg.Chat.EventSource).
		Str("model", app.Generator.ModelName()).
		Msg("Application initialized")

	return app, nil
}

func (a *App) initStorage() error {
	store, err := storage.NewSessionStore(a.Logger, a.Config)
	if err != nil {
		return err
	}
	a.SessionStore = store
	a.Logger.Debug().Str("backend", a.Config.Sessions.Backend).Msg("Session store initialized")
	return nil
}

// initServices builds the services in dependency order: transports, the
// document pipeline, then the conversation layer on top.
func (a *App) initServices(ctx context.Context) error {
	var err error

	// 1. Chat transport
	a.Chat = mattermost.NewClient(&a.Config.Mattermost, a.Logger)

	// 2. Wiki client
	wikiTimeout := common.ParseDurationOr(a.Config.Confluence.Timeout, confluence.DefaultTimeout)
	a.Wiki = confluence.NewClient(
		a.Config.Confluence.BaseURL,
		a.Config.Confluence.Username,
		a.Config.Confluence.Password,
		confluence.WithHTTPClient(httpclient.NewDefaultHTTPClient(wikiTimeout)),
		confluence.WithLogger(a.Logger),
		confluence.WithRateLimit(common.ParseDurationOr(a.Config.Confluence.RateLimit, confluence.DefaultRateInterval)),
	)

	// 3. Text generation
	a.Generator, err = llm.NewGenerator(ctx, a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create text generator: %w", err)
	}

	// 4. Document normalization
	a.Extractors = extract.NewRegistry(a.Logger)
	a.Transform = transform.NewService(a.Logger)
	a.Resolver = confluence.NewResolver(a.Wiki, a.Config.Confluence.KnownShortLinks, a.Logger)
	a.Crawler = confluence.NewCrawler(a.Wiki, a.Config.Confluence.MaxDepth, a.Logger)
	a.Normalizer = documents.NewService(a.Extractors, a.Wiki, a.Resolver, a.Crawler, a.Transform, a.Logger)

	// 5. Analysis and reporting
	a.Analyzer = analysis.NewEngine(a.Generator, a.Logger,
		analysis.WithBatchSize(a.Config.Analysis.BatchSize),
		analysis.WithRequestTimeout(common.ParseDurationOr(a.Config.LLM.RequestTimeout, analysis.DefaultRequestTimeout)),
		analysis.WithContextBuilder(analysis.NewContextBuilder(a.Config.Analysis.DocumentCharLimit, a.Config.Analysis.ContextCharLimit)),
	)
	a.Reporter = report.NewService(&a.Config.Report, a.Logger)

	// 6. Conversation
	a.Machine = conversation.NewMachine(conversation.Dependencies{
		Transport:  a.Chat,
		Store:      a.SessionStore,
		Normalizer: a.Normalizer,
		Analyzer:   a.Analyzer,
		Renderer:   a.Reporter,
	}, a.Config, a.Logger)

	// 7. Event source
	switch a.Config.Chat.EventSource {
	case "websocket":
		a.EventSource, err = events.NewWebSocketSource(a.Chat, a.Chat, &a.Config.Chat, a.Logger)
	default:
		a.EventSource, err = events.NewPollSource(a.Chat, &a.Config.Chat, a.Logger)
	}
	if err != nil {
		return fmt.Errorf("failed to create event source: %w", err)
	}

	return nil
}

// Run logs in to the chat server and dispatches incoming posts to the
// conversation machine until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.Chat.Login(ctx); err != nil {
		return fmt.Errorf("mattermost login: %w", err)
	}

	a.Logger.Info().Str("url", a.Chat.BaseURL()).Msg("Connected to Mattermost, waiting for messages")

	err := a.EventSource.Run(ctx, a.Machine.HandlePost)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Check verifies connectivity to Mattermost, Confluence and the text
// generation endpoint. The checks run concurrently; their errors are joined.
func (a *App) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	checks := []func(context.Context) error{a.checkChat, a.checkWiki, a.checkGenerator}
	errs := make([]error, len(checks))

	var g errgroup.Group
	for i, check := range checks {
		g.Go(func() error {
			errs[i] = check(ctx)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (a *App) checkChat(ctx context.Context) error {
	if err := a.Chat.Ping(ctx); err != nil {
		return fmt.Errorf("mattermost ping: %w", err)
	}
	if err := a.Chat.Login(ctx); err != nil {
		return fmt.Errorf("mattermost login: %w", err)
	}
	a.Logger.Info().Str("url", a.Chat.BaseURL()).Msg("Mattermost reachable")
	return nil
}

func (a *App) checkWiki(ctx context.Context) error {
	if !a.Wiki.HasCredentials() {
		a.Logger.Warn().Msg("Confluence credentials not configured, skipping wiki check")
		return nil
	}
	if _, err := a.Wiki.ListPages(ctx, 0, 1, ""); err != nil {
		return fmt.Errorf("confluence: %w", err)
	}
	a.Logger.Info().Str("url", a.Wiki.BaseURL()).Msg("Confluence reachable")
	return nil
}

func (a *App) checkGenerator(ctx context.Context) error {
	models, err := a.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("text generation: %w", err)
	}
	a.Logger.Info().Int("models", len(models)).Str("model", a.Generator.ModelName()).Msg("Text generation endpoint reachable")
	return nil
}

// ListModels returns the models served by the text generation endpoint
func (a *App) ListModels(ctx context.Context) ([]string, error) {
	lister, ok := a.Generator.(interfaces.ModelLister)
	if !ok {
		return []string{a.Generator.ModelName()}, nil
	}
	return lister.ListModels(ctx)
}

// Close closes all application resources
func (a *App) Close() error {
	if a.SessionStore != nil {
		if err := a.SessionStore.Close(); err != nil {
			return fmt.Errorf("failed to close session store: %w", err)
		}
		a.Logger.Info().Msg("Session store closed")
	}
	return nil
}
