package analysis

import "github.com/ternarybob/dossier/internal/models"

// DefaultBatchSize is the number of artifacts evaluated per request
const DefaultBatchSize = 15

// Partition splits the catalog into consecutive batches of at most size
// artifacts, keeping catalog order
func Partition(catalog []models.RequiredArtifact, size int) [][]models.RequiredArtifact {
	if size < 1 {
		size = DefaultBatchSize
	}
	batches := make([][]models.RequiredArtifact, 0, (len(catalog)+size-1)/size)
	for start := 0; start < len(catalog); start += size {
		end := start + size
		if end > len(catalog) {
			end = len(catalog)
		}
		batches = append(batches, catalog[start:end])
	}
	return batches
}
