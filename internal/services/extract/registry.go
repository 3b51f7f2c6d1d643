// Package extract converts uploaded and attached document binaries into
// plain text for analysis.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/interfaces"
)

// Registry dispatches extraction on the lower-cased file extension
type Registry struct {
	extractors map[string]interfaces.TextExtractor
	logger     arbor.ILogger
}

var _ interfaces.ExtractorRegistry = (*Registry)(nil)

// NewRegistry creates a registry with every supported format registered
func NewRegistry(logger arbor.ILogger) *Registry {
	r := &Registry{
		extractors: make(map[string]interfaces.TextExtractor),
		logger:     logger,
	}

	docx := NewDOCXExtractor(logger)
	xlsx := NewXLSXExtractor(logger)

	r.Register(".pdf", NewPDFExtractor(logger))
	r.Register(".docx", docx)
	r.Register(".doc", docx)
	r.Register(".xlsx", xlsx)
	r.Register(".xls", xlsx)
	r.Register(".rtf", NewRTFExtractor())
	r.Register(".txt", TextExtractor{})

	return r
}

// Register adds or replaces the extractor of ext
func (r *Registry) Register(ext string, extractor interfaces.TextExtractor) {
	r.extractors[normalizeExt(ext)] = extractor
}

// Supports reports whether ext has an extractor
func (r *Registry) Supports(ext string) bool {
	_, ok := r.extractors[normalizeExt(ext)]
	return ok
}

// Extensions lists the registered extensions in sorted order
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Extract returns the text of fileName. The extension of fileName selects the format.
func (r *Registry) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	ext := normalizeExt(filepath.Ext(fileName))
	extractor, ok := r.extractors[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file format %q", ext)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("file %s is empty", fileName)
	}

	text, err := extractor.ExtractText(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to extract %s: %w", fileName, err)
	}

	r.logger.Debug().
		Str("file", fileName).
		Int("bytes", len(data)).
		Int("chars", len([]rune(text))).
		Msg("Extracted document text")

	return text, nil
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
