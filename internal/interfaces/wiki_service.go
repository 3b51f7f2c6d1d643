package interfaces

import (
	"context"

	"github.com/ternarybob/dossier/internal/models"
)

// WikiService is the Confluence surface the resolver and crawler consume
type WikiService interface {
	// HasCredentials reports whether authenticated calls are possible
	HasCredentials() bool
	// BaseURL returns the wiki root with a trailing slash
	BaseURL() string
	GetPage(ctx context.Context, pageID string) (*models.WikiPage, error)
	// PageExists is a lightweight existence check used by short-link resolution
	PageExists(ctx context.Context, pageID string) (bool, error)
	ListPages(ctx context.Context, start, limit int, expand string) ([]models.WikiContent, error)
	SearchPages(ctx context.Context, cql string, limit int, expand string) ([]models.WikiContent, error)
	GetChildPages(ctx context.Context, pageID string) ([]models.WikiPageNode, error)
	GetAttachments(ctx context.Context, pageID string) ([]models.WikiAttachment, error)
	DownloadAttachment(ctx context.Context, downloadLink string) ([]byte, error)
}

// PageResolver turns a wiki URL into a canonical page id
type PageResolver interface {
	Resolve(ctx context.Context, pageURL string) (string, error)
}

// WikiCrawler walks a page tree below a resolved root
type WikiCrawler interface {
	// Descendants returns every descendant in depth-first order, bounded by the depth cap
	Descendants(ctx context.Context, rootID string) []models.WikiPageNode
	// Attachments returns the qualifying attachments of a page
	Attachments(ctx context.Context, pageID, pageTitle string) []models.WikiAttachment
}
