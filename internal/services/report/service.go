// Package report renders analysis results as a PDF report and a chat summary.
package report

import (
	"bytes"
	"fmt"
	"os"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/common"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	unicodeFamily = "DejaVu"
	coreFamily    = "Arial"
	baseFontSize  = 9.0
)

// Service implements interfaces.ReportRenderer
type Service struct {
	logger      arbor.ILogger
	regularFont []byte
	boldFont    []byte
	fontPath    string
}

var _ interfaces.ReportRenderer = (*Service)(nil)

// NewService creates a report renderer. The first readable file in
// cfg.FontPaths becomes the body font; without one the core Arial font is used
// and non-Latin text is approximated.
func NewService(cfg *common.ReportConfig, logger arbor.ILogger) *Service {
	s := &Service{logger: logger}

	var fontPaths, boldPaths []string
	if cfg != nil {
		fontPaths = cfg.FontPaths
		boldPaths = cfg.BoldFontPaths
	}

	s.fontPath, s.regularFont = readFirst(fontPaths)
	if s.regularFont == nil {
		logger.Warn().
			Int("candidates", len(fontPaths)).
			Msg("No UTF-8 font found for PDF reports, falling back to core font (Cyrillic will not render)")
		return s
	}

	boldPath, bold := readFirst(boldPaths)
	if bold == nil {
		bold = s.regularFont
		boldPath = s.fontPath
	}
	s.boldFont = bold

	logger.Debug().
		Str("font", s.fontPath).
		Str("bold_font", boldPath).
		Msg("PDF report fonts loaded")
	return s
}

// UnicodeFont reports whether a UTF-8 TrueType font was loaded
func (s *Service) UnicodeFont() bool {
	return s.regularFont != nil
}

// Render builds the report for result and returns the PDF bytes
func (s *Service) Render(result *models.AnalysisResult, projectTypes []string, documents []models.Document) ([]byte, error) {
	if result == nil {
		return nil, fmt.Errorf("render report: nil analysis result")
	}
	markdown := BuildMarkdown(result, projectTypes, documents)
	return s.ConvertMarkdownToPDF(markdown, ReportTitle)
}

// ConvertMarkdownToPDF converts markdown content to a PDF byte slice
func (s *Service) ConvertMarkdownToPDF(markdown, title string) ([]byte, error) {
	s.logger.Debug().
		Int("markdown_len", len(markdown)).
		Str("title", title).
		Msg("Converting markdown to PDF")

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 15)

	family := coreFamily
	translate := func(s string) string { return s }
	if s.regularFont != nil {
		family = unicodeFamily
		// Emphasis needs every style registered; italics reuse the upright faces.
		pdf.AddUTF8FontFromBytes(family, "", s.regularFont)
		pdf.AddUTF8FontFromBytes(family, "I", s.regularFont)
		pdf.AddUTF8FontFromBytes(family, "B", s.boldFont)
		pdf.AddUTF8FontFromBytes(family, "BI", s.boldFont)
		pdf.SetTitle(title, true)
	} else {
		translate = pdf.UnicodeTranslatorFromDescriptor("")
		pdf.SetTitle(translate(title), false)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to register PDF fonts: %w", err)
	}

	pdf.AddPage()
	pdf.SetFont(family, "", baseFontSize)

	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
	)

	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	renderer := &pdfRenderer{
		pdf:       pdf,
		source:    source,
		logger:    s.logger,
		font:      family,
		size:      baseFontSize,
		translate: translate,
	}

	if err := renderer.render(doc); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	s.logger.Debug().Int("pdf_size", buf.Len()).Msg("PDF generated successfully")
	return buf.Bytes(), nil
}

func readFirst(paths []string) (string, []byte) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err == nil && len(data) > 0 {
			return p, data
		}
	}
	return "", nil
}
