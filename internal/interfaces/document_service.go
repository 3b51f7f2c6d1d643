package interfaces

import (
	"context"

	"github.com/ternarybob/dossier/internal/models"
)

// DocumentNormalizer turns collected inputs into analyzable documents.
// A failing input is skipped, never fatal to the batch.
type DocumentNormalizer interface {
	Normalize(ctx context.Context, inputs []models.RawInput) []models.Document
}

// ArtifactAnalyzer runs the batched artifact sweep over normalized documents.
// Batch failures become not found verdicts; only cancellation is an error.
type ArtifactAnalyzer interface {
	Analyze(ctx context.Context, documents []models.Document, projectTypes []string) (*models.AnalysisResult, error)
}
