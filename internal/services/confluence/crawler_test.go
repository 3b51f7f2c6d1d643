package confluence

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/models"
)

// fakeWiki serves a fixed page tree
type fakeWiki struct {
	children    map[string][]models.WikiPageNode
	attachments map[string][]models.WikiAttachment
	failing     map[string]bool
	listed      []string
}

func (f *fakeWiki) HasCredentials() bool { return true }
func (f *fakeWiki) BaseURL() string      { return "https://wiki.example.com/" }
func (f *fakeWiki) GetPage(ctx context.Context, pageID string) (*models.WikiPage, error) {
	return &models.WikiPage{ID: pageID, Title: "Page " + pageID}, nil
}
func (f *fakeWiki) PageExists(ctx context.Context, pageID string) (bool, error) { return false, nil }
func (f *fakeWiki) ListPages(ctx context.Context, start, limit int, expand string) ([]models.WikiContent, error) {
	return nil, nil
}
func (f *fakeWiki) SearchPages(ctx context.Context, cql string, limit int, expand string) ([]models.WikiContent, error) {
	return nil, nil
}
func (f *fakeWiki) GetChildPages(ctx context.Context, pageID string) ([]models.WikiPageNode, error) {
	f.listed = append(f.listed, pageID)
	if f.failing[pageID] {
		return nil, errors.New("boom")
	}
	return f.children[pageID], nil
}
func (f *fakeWiki) GetAttachments(ctx context.Context, pageID string) ([]models.WikiAttachment, error) {
	if f.failing[pageID] {
		return nil, errors.New("boom")
	}
	return f.attachments[pageID], nil
}
func (f *fakeWiki) DownloadAttachment(ctx context.Context, link string) ([]byte, error) {
	return []byte("data"), nil
}

func treeWiki() *fakeWiki {
	return &fakeWiki{
		children: map[string][]models.WikiPageNode{
			"root": {{ID: "a", Title: "A"}, {ID: "b", Title: "B"}},
			"a":    {{ID: "a1", Title: "A1"}},
		},
	}
}

func TestCrawler_DepthFirstOrder(t *testing.T) {
	crawler := NewCrawler(treeWiki(), 5, arbor.NewLogger())

	nodes := crawler.Descendants(context.Background(), "root")

	require.Len(t, nodes, 3)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, 2, nodes[0].Depth)
	assert.Equal(t, "a1", nodes[1].ID)
	assert.Equal(t, 3, nodes[1].Depth)
	assert.Equal(t, "b", nodes[2].ID)
	assert.Equal(t, 2, nodes[2].Depth)
}

func TestCrawler_DepthCapOmitsGrandchild(t *testing.T) {
	wiki := treeWiki()
	crawler := NewCrawler(wiki, 2, arbor.NewLogger())

	nodes, capped := crawler.walk(context.Background(), "root")

	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "b", nodes[1].ID)
	assert.Equal(t, 2, capped, "both depth-2 pages sit at the cap")
	assert.Equal(t, []string{"root"}, wiki.listed, "pages at the cap are not listed")

	// Descendants logs the cap and returns the same nodes
	assert.Equal(t, nodes, crawler.Descendants(context.Background(), "root"))
}

func TestCrawler_DepthOneListsNothing(t *testing.T) {
	wiki := treeWiki()
	crawler := NewCrawler(wiki, 1, arbor.NewLogger())

	assert.Empty(t, crawler.Descendants(context.Background(), "root"))
	assert.Empty(t, wiki.listed)
}

func TestCrawler_FailedListingSkipsSubtree(t *testing.T) {
	wiki := treeWiki()
	wiki.failing = map[string]bool{"a": true}
	crawler := NewCrawler(wiki, 5, arbor.NewLogger())

	nodes := crawler.Descendants(context.Background(), "root")

	require.Len(t, nodes, 2)
	assert.Equal(t, "a", nodes[0].ID)
	assert.Equal(t, "b", nodes[1].ID)
}

func TestCrawler_AttachmentsFiltered(t *testing.T) {
	wiki := &fakeWiki{
		attachments: map[string][]models.WikiAttachment{
			"p": {
				{ID: "1", Title: "spec.docx", MediaType: "application/octet-stream"},
				{ID: "2", Title: "scan.png", MediaType: "image/png"},
				{ID: "3", Title: "report", MediaType: "application/pdf"},
			},
		},
	}
	crawler := NewCrawler(wiki, 5, arbor.NewLogger())

	kept := crawler.Attachments(context.Background(), "p", "Page P")

	require.Len(t, kept, 2)
	assert.Equal(t, "spec.docx", kept[0].Title)
	assert.Equal(t, "report", kept[1].Title)
	assert.Equal(t, "Page P", kept[0].SourcePage)

	wiki.failing = map[string]bool{"p": true}
	assert.Empty(t, crawler.Attachments(context.Background(), "p", "Page P"))
}
