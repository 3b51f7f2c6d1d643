package confluence

import (
	"context"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/interfaces"
	"github.com/ternarybob/dossier/internal/models"
)

// DefaultMaxDepth bounds the page tree walk. The root page has depth 1.
const DefaultMaxDepth = 5

var (
	supportedMediaTokens = []string{
		"pdf", "doc", "docx", "txt", "rtf", "excel", "spreadsheet", "xlsx", "xls",
		"application/pdf", "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"text/plain", "application/rtf",
	}
	supportedExtensions = []string{".pdf", ".doc", ".docx", ".txt", ".rtf", ".xls", ".xlsx"}
)

// Crawler walks the descendants of a wiki page
type Crawler struct {
	wiki     interfaces.WikiService
	maxDepth int
	logger   arbor.ILogger
}

var _ interfaces.WikiCrawler = (*Crawler)(nil)

// NewCrawler creates a crawler; maxDepth < 1 selects DefaultMaxDepth
func NewCrawler(wiki interfaces.WikiService, maxDepth int, logger arbor.ILogger) *Crawler {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &Crawler{wiki: wiki, maxDepth: maxDepth, logger: logger}
}

// Descendants returns every page below rootID in depth-first order, siblings
// kept in server order. Pages deeper than the cap are left out. A failed
// child listing drops that subtree only.
func (c *Crawler) Descendants(ctx context.Context, rootID string) []models.WikiPageNode {
	result, capped := c.walk(ctx, rootID)

	if capped > 0 {
		c.logger.Info().
			Str("root_id", rootID).
			Int("max_depth", c.maxDepth).
			Int("capped_pages", capped).
			Msg("Depth cap reached - children of capped pages not listed")
	}

	c.logger.Debug().Str("root_id", rootID).Int("descendants", len(result)).Msg("Page tree crawled")
	return result
}

// walk returns the visited descendants and the number of pages at the depth
// cap. Children of a capped page are never listed.
func (c *Crawler) walk(ctx context.Context, rootID string) ([]models.WikiPageNode, int) {
	var result []models.WikiPageNode
	stack := []models.WikiPageNode{{ID: rootID, Depth: 1}}
	capped := 0

	for len(stack) > 0 {
		if ctx.Err() != nil {
			break
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if node.Depth > 1 {
			result = append(result, node)
		}

		childDepth := node.Depth + 1
		if childDepth > c.maxDepth {
			capped++
			continue
		}

		children, err := c.wiki.GetChildPages(ctx, node.ID)
		if err != nil {
			c.logger.Warn().Err(err).Str("page_id", node.ID).Msg("Failed to list child pages - subtree skipped")
			continue
		}

		// Reverse push keeps the first sibling on top
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			child.Depth = childDepth
			stack = append(stack, child)
		}
	}

	return result, capped
}

// Attachments returns the attachments of a page with a supported media type
// or file extension. Listing errors yield an empty list.
func (c *Crawler) Attachments(ctx context.Context, pageID, pageTitle string) []models.WikiAttachment {
	all, err := c.wiki.GetAttachments(ctx, pageID)
	if err != nil {
		c.logger.Warn().Err(err).Str("page_id", pageID).Msg("Failed to list attachments")
		return nil
	}

	var kept []models.WikiAttachment
	for _, a := range all {
		if !IsSupportedAttachment(a.MediaType, a.Title) {
			c.logger.Debug().Str("title", a.Title).Str("media_type", a.MediaType).Msg("Skipping unsupported attachment")
			continue
		}
		a.SourcePage = pageTitle
		kept = append(kept, a)
	}
	return kept
}

// IsSupportedAttachment reports whether an attachment can be extracted
func IsSupportedAttachment(mediaType, title string) bool {
	mediaType = strings.ToLower(mediaType)
	for _, token := range supportedMediaTokens {
		if strings.Contains(mediaType, token) {
			return true
		}
	}
	name := strings.ToLower(title)
	for _, ext := range supportedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}
