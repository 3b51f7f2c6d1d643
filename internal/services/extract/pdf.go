// -----------------------------------------------------------------------
// PDF Extractor - Extract text content from PDF documents
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/models"
)

// PDFExtractor extracts page text with pdfcpu. Every page is preceded by a
// "--- Страница N ---" marker so page counts survive normalization.
type PDFExtractor struct {
	logger arbor.ILogger
}

// NewPDFExtractor creates a PDF extractor
func NewPDFExtractor(logger arbor.ILogger) *PDFExtractor {
	return &PDFExtractor{logger: logger}
}

// ExtractText implements interfaces.TextExtractor
func (e *PDFExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	pages, err := e.ExtractPages(ctx, data)
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for i, text := range pages {
		builder.WriteString(fmt.Sprintf("\n%s %d ---\n", models.PageMarker, i+1))
		builder.WriteString(text)
		builder.WriteByte('\n')
	}
	return builder.String(), nil
}

// ExtractPages returns the text of each page in order
func (e *PDFExtractor) ExtractPages(ctx context.Context, data []byte) ([]string, error) {
	workDir, err := os.MkdirTemp("", "dossier-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// pdfcpu works on files
	tempFile := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write temp PDF file: %w", err)
	}

	pdfCtx, err := api.ReadContextFile(tempFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF context: %w", err)
	}
	pageCount := pdfCtx.PageCount

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := filepath.Join(workDir, "content")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content dir: %w", err)
	}

	pages := make([]string, pageCount)

	if err := api.ExtractContentFile(tempFile, outDir, nil, model.NewDefaultConfiguration()); err != nil {
		e.logger.Warn().Err(err).Int("pages", pageCount).Msg("Failed to extract PDF content streams - pages left empty")
		return pages, nil
	}

	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		pageNum := contentPageNumber(file.Name())
		if pageNum < 1 || pageNum > pageCount {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		pages[pageNum-1] += contentStreamText(content)
	}

	e.logger.Debug().Int("pages", pageCount).Msg("Extracted PDF pages")
	return pages, nil
}

// contentPageNumber parses the page number out of pdfcpu's
// "<name>_Content_page_N.txt" output file names
func contentPageNumber(name string) int {
	idx := strings.LastIndex(name, "Content_page_")
	if idx < 0 {
		return 0
	}
	var pageNum int
	if _, err := fmt.Sscanf(name[idx:], "Content_page_%d", &pageNum); err != nil {
		return 0
	}
	return pageNum
}
