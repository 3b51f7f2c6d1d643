// Package documents turns collected chat inputs into analyzable documents.
package documents

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/ternarybob/dossier/internal/services/confluence"
)

// Service implements interfaces.DocumentNormalizer
type Service struct {
	extractors interfaces.ExtractorRegistry
	wiki       interfaces.WikiService
	resolver   interfaces.PageResolver
	crawler    interfaces.WikiCrawler
	transform  interfaces.TransformService
	logger     arbor.ILogger
}

var _ interfaces.DocumentNormalizer = (*Service)(nil)

// NewService creates a new document normalizer
func NewService(
	extractors interfaces.ExtractorRegistry,
	wiki interfaces.WikiService,
	resolver interfaces.PageResolver,
	crawler interfaces.WikiCrawler,
	transform interfaces.TransformService,
	logger arbor.ILogger,
) *Service {
	return &Service{
		extractors: extractors,
		wiki:       wiki,
		resolver:   resolver,
		crawler:    crawler,
		transform:  transform,
		logger:     logger,
	}
}

// Normalize converts every input it can. A failing input is logged and
// skipped; the order of the remaining inputs is kept.
func (s *Service) Normalize(ctx context.Context, inputs []models.RawInput) []models.Document {
	docs := make([]models.Document, 0, len(inputs))

	for _, input := range inputs {
		if ctx.Err() != nil {
			s.logger.Warn().Err(ctx.Err()).Msg("Normalization cancelled")
			break
		}

		var (
			doc *models.Document
			err error
		)
		switch input.Kind {
		case models.DocumentKindFile:
			doc, err = s.normalizeFile(ctx, input)
		case models.DocumentKindWikiPage:
			doc = s.normalizeWikiPage(ctx, input)
		default:
			err = fmt.Errorf("unknown input kind %q", input.Kind)
		}

		if err != nil {
			s.logger.Warn().Err(err).Str("name", input.Name).Msg("Skipping document")
			continue
		}
		if doc == nil {
			continue
		}

		s.logger.Info().
			Str("name", doc.Name).
			Str("kind", string(doc.Kind)).
			Int("pages", doc.PageCount).
			Int("chars", len([]rune(doc.Text))).
			Msg("Document normalized")
		docs = append(docs, *doc)
	}

	return docs
}

func (s *Service) normalizeFile(ctx context.Context, input models.RawInput) (*models.Document, error) {
	if len(input.Data) == 0 {
		return nil, fmt.Errorf("file %s has no data", input.Name)
	}

	ext := strings.ToLower(filepath.Ext(input.Name))
	if !s.extractors.Supports(ext) {
		return nil, fmt.Errorf("unsupported file format %q", ext)
	}

	text, err := s.extractors.Extract(ctx, input.Name, input.Data)
	if err != nil {
		return nil, err
	}

	size := input.Size
	if size == 0 {
		size = int64(len(input.Data))
	}

	return &models.Document{
		Name:      input.Name,
		Kind:      models.DocumentKindFile,
		Format:    ext,
		Text:      text,
		PageCount: models.CountPages(text),
		SizeBytes: size,
	}, nil
}

// normalizeWikiPage composes the root page, its descendants and every
// qualifying attachment into one document. It always returns a document:
// unresolvable links and failed root fetches become placeholder text.
func (s *Service) normalizeWikiPage(ctx context.Context, input models.RawInput) *models.Document {
	pageID, err := s.resolver.Resolve(ctx, input.URL)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", input.URL).Msg("Failed to resolve wiki page")
		text := confluence.UnresolvedPlaceholder(input.URL, err)
		return &models.Document{
			Name:      fmt.Sprintf("Confluence: %s", input.URL),
			Kind:      models.DocumentKindWikiPage,
			Source:    input.URL,
			Text:      text,
			PageCount: 1,
		}
	}

	rootText, rootTitle, fetched := s.fetchPageText(ctx, pageID)

	var (
		body        strings.Builder
		descendants []models.WikiPageNode
		rootFiles   []models.WikiAttachment
		childFiles  []models.WikiAttachment
	)

	body.WriteString(fmt.Sprintf("--- ГЛАВНАЯ СТРАНИЦА: %s ---\n%s\n", rootTitle, rootText))

	if fetched {
		descendants = s.crawler.Descendants(ctx, pageID)
		rootFiles = s.crawler.Attachments(ctx, pageID, rootTitle)

		for _, node := range descendants {
			childText, childTitle, _ := s.fetchPageText(ctx, node.ID)
			indent := strings.Repeat("  ", node.Depth)
			body.WriteString(fmt.Sprintf("\n--- %sДОЧЕРНЯЯ СТРАНИЦА (уровень %d): %s ---\n%s\n", indent, node.Depth, childTitle, childText))

			for _, a := range s.crawler.Attachments(ctx, node.ID, childTitle) {
				s.logger.Debug().Str("page", childTitle).Str("file", a.Title).Msg("Found attachment on child page")
				childFiles = append(childFiles, a)
			}
		}

		for _, a := range rootFiles {
			if text := s.attachmentText(ctx, a); text != "" {
				body.WriteString(fmt.Sprintf("\n--- ВЛОЖЕННЫЙ ФАЙЛ (главная страница): %s ---\n%s\n", a.Title, text))
			}
		}
		for _, a := range childFiles {
			if text := s.attachmentText(ctx, a); text != "" {
				source := a.SourcePage
				if source == "" {
					source = "неизвестная страница"
				}
				body.WriteString(fmt.Sprintf("\n--- ВЛОЖЕННЫЙ ФАЙЛ (со страницы '%s'): %s ---\n%s\n", source, a.Title, text))
			}
		}
	}

	text := body.String()
	attachmentCount := len(rootFiles) + len(childFiles)
	pageCount := models.CountPages(text)
	if visited := len(descendants) + 1; visited > pageCount {
		pageCount = visited
	}

	s.logger.Info().
		Str("page_id", pageID).
		Int("child_pages", len(descendants)).
		Int("root_attachments", len(rootFiles)).
		Int("child_attachments", len(childFiles)).
		Msg("Wiki page tree collected")

	return &models.Document{
		Name:            fmt.Sprintf("Confluence: %s (+ %d дочерних страниц + %d файлов)", rootTitle, len(descendants), attachmentCount),
		Kind:            models.DocumentKindWikiPage,
		Source:          input.URL,
		Text:            text,
		PageCount:       pageCount,
		ChildPageCount:  len(descendants),
		AttachmentCount: attachmentCount,
	}
}

// fetchPageText returns the page text and title. fetched is false when a
// placeholder was substituted.
func (s *Service) fetchPageText(ctx context.Context, pageID string) (text, title string, fetched bool) {
	if !s.wiki.HasCredentials() {
		return confluence.NoCredentialsPlaceholder(s.wiki.BaseURL(), pageID), confluence.NoCredentialsTitle(pageID), false
	}

	page, err := s.wiki.GetPage(ctx, pageID)
	if err != nil {
		s.logger.Warn().Err(err).Str("page_id", pageID).Msg("Failed to fetch wiki page")
		return confluence.FetchErrorPlaceholder(s.wiki.BaseURL(), pageID, err), confluence.FetchErrorTitle(pageID), false
	}

	title = page.Title
	if title == "" {
		title = "Без названия"
	}

	text, err = s.transform.HTMLToText(page.Body)
	if err != nil {
		s.logger.Warn().Err(err).Str("page_id", pageID).Msg("Failed to convert page body, using markdown fallback")
		text, _ = s.transform.HTMLToMarkdown(page.Body, s.wiki.BaseURL())
	}
	return text, title, true
}

func (s *Service) attachmentText(ctx context.Context, a models.WikiAttachment) string {
	name := a.Title
	if !s.extractors.Supports(filepath.Ext(name)) {
		ext := extensionForMediaType(a.MediaType)
		if ext == "" {
			s.logger.Warn().Str("file", a.Title).Str("media_type", a.MediaType).Msg("Unsupported attachment format")
			return ""
		}
		name += ext
	}

	data, err := s.wiki.DownloadAttachment(ctx, a.DownloadLink)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", a.Title).Msg("Failed to download attachment")
		return ""
	}

	text, err := s.extractors.Extract(ctx, name, data)
	if err != nil {
		s.logger.Warn().Err(err).Str("file", a.Title).Msg("Failed to extract attachment")
		return ""
	}
	return text
}

var mediaTypeExtensions = []struct {
	token string
	ext   string
}{
	{"wordprocessingml", ".docx"},
	{"spreadsheetml", ".xlsx"},
	{"msword", ".doc"},
	{"ms-excel", ".xls"},
	{"pdf", ".pdf"},
	{"rtf", ".rtf"},
	{"text/plain", ".txt"},
}

// extensionForMediaType picks an extractor for attachments titled without
// a usable extension
func extensionForMediaType(mediaType string) string {
	mediaType = strings.ToLower(mediaType)
	for _, m := range mediaTypeExtensions {
		if strings.Contains(mediaType, m.token) {
			return m.ext
		}
	}
	return ""
}
