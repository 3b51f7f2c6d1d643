package interfaces

import (
	"github.com/ternarybob/dossier/internal/models"
)

// ReportRenderer produces the deliverable report of an analysis run
type ReportRenderer interface {
	Render(result *models.AnalysisResult, projectTypes []string, documents []models.Document) ([]byte, error)
}
