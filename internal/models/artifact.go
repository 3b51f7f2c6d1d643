package models

import "time"

// VerdictStatus is the outcome for one required artifact
type VerdictStatus string

const (
	StatusFound    VerdictStatus = "found"
	StatusPartial  VerdictStatus = "partial"
	StatusNotFound VerdictStatus = "not_found"
)

// RequiredArtifact is one catalog entry
type RequiredArtifact struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

// ArtifactVerdict is the judgment for one RequiredArtifact.
// Name always equals the catalog entry it was evaluated against.
type ArtifactVerdict struct {
	Name        string        `json:"name"`
	Status      VerdictStatus `json:"status"`
	Source      string        `json:"source"`
	Description string        `json:"description"`
}

// AnalysisSummary holds the verdict counts of a run
type AnalysisSummary struct {
	Total    int `json:"total"`
	Found    int `json:"found"`
	Partial  int `json:"partial"`
	NotFound int `json:"not_found"`
}

// AnalysisResult aggregates the verdicts of every batch of a run
type AnalysisResult struct {
	RunID        string            `json:"run_id"`
	Model        string            `json:"model"`
	ProjectTypes []string          `json:"project_types"`
	Found        []ArtifactVerdict `json:"found"`
	Partial      []ArtifactVerdict `json:"partial"`
	NotFound     []ArtifactVerdict `json:"not_found"`
	Summary      AnalysisSummary   `json:"summary"`
	Documents    []Document        `json:"documents"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// Add files a verdict under its status and updates the summary
func (r *AnalysisResult) Add(v ArtifactVerdict) {
	switch v.Status {
	case StatusFound:
		r.Found = append(r.Found, v)
		r.Summary.Found++
	case StatusPartial:
		r.Partial = append(r.Partial, v)
		r.Summary.Partial++
	default:
		v.Status = StatusNotFound
		r.NotFound = append(r.NotFound, v)
		r.Summary.NotFound++
	}
	r.Summary.Total++
}

// Verdicts returns all verdicts ordered found, partial, not found
func (r *AnalysisResult) Verdicts() []ArtifactVerdict {
	all := make([]ArtifactVerdict, 0, r.Summary.Total)
	all = append(all, r.Found...)
	all = append(all, r.Partial...)
	return append(all, r.NotFound...)
}
