package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
)

// DefaultRequestTimeout bounds one batch request
const DefaultRequestTimeout = 5 * time.Minute

// ErrEmptyReply is returned for a batch whose reply carried no text
var ErrEmptyReply = errors.New("empty reply from text generator")

// Engine runs the batched artifact sweep over normalized documents
type Engine struct {
	generator      interfaces.TextGenerator
	contextBuilder *ContextBuilder
	batchSize      int
	requestTimeout time.Duration
	logger         arbor.ILogger
}

// Option configures an Engine
type Option func(*Engine)

// WithBatchSize sets the number of artifacts per request
func WithBatchSize(size int) Option {
	return func(e *Engine) {
		if size > 0 {
			e.batchSize = size
		}
	}
}

// WithRequestTimeout sets the per-batch deadline
func WithRequestTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.requestTimeout = timeout
		}
	}
}

// WithContextBuilder replaces the default context limits
func WithContextBuilder(builder *ContextBuilder) Option {
	return func(e *Engine) {
		if builder != nil {
			e.contextBuilder = builder
		}
	}
}

// NewEngine creates an engine around a text generator
func NewEngine(generator interfaces.TextGenerator, logger arbor.ILogger, opts ...Option) *Engine {
	e := &Engine{
		generator:      generator,
		contextBuilder: NewContextBuilder(0, 0),
		batchSize:      DefaultBatchSize,
		requestTimeout: DefaultRequestTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze evaluates every catalog artifact for the given project types.
// Batches run sequentially; a failed batch yields not found verdicts for
// its artifacts and the sweep continues. Analyze only fails when ctx is
// cancelled.
func (e *Engine) Analyze(ctx context.Context, docs []models.Document, projectTypes []string) (*models.AnalysisResult, error) {
	catalog := BuildCatalog(projectTypes)
	batches := Partition(catalog, e.batchSize)

	result := &models.AnalysisResult{
		RunID:        common.NewRunID(),
		Model:        e.generator.ModelName(),
		ProjectTypes: projectTypes,
		Documents:    docs,
		StartedAt:    time.Now(),
	}

	e.logger.Info().
		Str("run_id", result.RunID).
		Str("model", result.Model).
		Int("documents", len(docs)).
		Int("artifacts", len(catalog)).
		Int("batches", len(batches)).
		Msg("Starting artifact analysis")

	docContext := e.contextBuilder.BuildContext(docs)

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis cancelled before batch %d: %w", i+1, err)
		}

		for _, v := range e.runBatch(ctx, docContext, batch, i+1, len(batches)) {
			result.Add(v)
		}
	}

	result.FinishedAt = time.Now()

	if result.Summary.Total != len(catalog) {
		e.logger.Error().
			Int("total", result.Summary.Total).
			Int("catalog", len(catalog)).
			Msg("Verdict count does not match catalog size")
	}

	e.logger.Info().
		Str("run_id", result.RunID).
		Int("found", result.Summary.Found).
		Int("partial", result.Summary.Partial).
		Int("not_found", result.Summary.NotFound).
		Dur("duration", result.FinishedAt.Sub(result.StartedAt)).
		Msg("Artifact analysis completed")

	return result, nil
}

func (e *Engine) runBatch(ctx context.Context, docContext string, batch []models.RequiredArtifact, index, count int) []models.ArtifactVerdict {
	prompt := BuildPrompt(docContext, batch, index, count)

	batchCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()

	start := time.Now()
	reply, err := e.generator.Generate(batchCtx, prompt)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = ErrEmptyReply
	}
	if err != nil {
		e.logger.Warn().
			Err(err).
			Int("batch", index).
			Int("of", count).
			Msg("Batch request failed, marking its artifacts as not found")
		return failedBatch(batch, index, count, err)
	}

	verdicts, strategy := ParseReply(reply, batch)
	e.logger.Debug().
		Int("batch", index).
		Int("of", count).
		Str("strategy", strategy).
		Int("reply_chars", len([]rune(reply))).
		Dur("elapsed", time.Since(start)).
		Msg("Batch parsed")

	return verdicts
}

func failedBatch(batch []models.RequiredArtifact, index, count int, err error) []models.ArtifactVerdict {
	verdicts := make([]models.ArtifactVerdict, len(batch))
	for i, a := range batch {
		verdicts[i] = models.ArtifactVerdict{
			Name:        a.Name,
			Status:      models.StatusNotFound,
			Description: fmt.Sprintf("Пакет %d из %d не обработан: %v", index, count, err),
		}
	}
	return verdicts
}
