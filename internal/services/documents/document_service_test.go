package documents

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/ternarybob/dossier/internal/services/confluence"
	"github.com/ternarybob/dossier/internal/services/extract"
	"github.com/ternarybob/dossier/internal/services/transform"
)

type fakeWiki struct {
	creds       bool
	pages       map[string]models.WikiPage
	children    map[string][]models.WikiPageNode
	attachments map[string][]models.WikiAttachment
	files       map[string][]byte
}

func (f *fakeWiki) HasCredentials() bool { return f.creds }
func (f *fakeWiki) BaseURL() string      { return "https://wiki.example.com/" }
func (f *fakeWiki) GetPage(ctx context.Context, id string) (*models.WikiPage, error) {
	p, ok := f.pages[id]
	if !ok {
		return nil, &confluence.StatusError{Code: 404}
	}
	return &p, nil
}
func (f *fakeWiki) PageExists(ctx context.Context, id string) (bool, error) {
	_, ok := f.pages[id]
	return ok, nil
}
func (f *fakeWiki) ListPages(ctx context.Context, start, limit int, expand string) ([]models.WikiContent, error) {
	return nil, nil
}
func (f *fakeWiki) SearchPages(ctx context.Context, cql string, limit int, expand string) ([]models.WikiContent, error) {
	return nil, nil
}
func (f *fakeWiki) GetChildPages(ctx context.Context, id string) ([]models.WikiPageNode, error) {
	return f.children[id], nil
}
func (f *fakeWiki) GetAttachments(ctx context.Context, id string) ([]models.WikiAttachment, error) {
	return f.attachments[id], nil
}
func (f *fakeWiki) DownloadAttachment(ctx context.Context, link string) ([]byte, error) {
	data, ok := f.files[link]
	if !ok {
		return nil, errors.New("missing")
	}
	return data, nil
}

type staticResolver struct {
	id  string
	err error
}

func (r staticResolver) Resolve(ctx context.Context, url string) (string, error) {
	return r.id, r.err
}

func newService(wiki *fakeWiki, resolver staticResolver) *Service {
	logger := arbor.NewLogger()
	return NewService(
		extract.NewRegistry(logger),
		wiki,
		resolver,
		confluence.NewCrawler(wiki, 5, logger),
		transform.NewService(logger),
		logger,
	)
}

func TestNormalize_Files(t *testing.T) {
	service := newService(&fakeWiki{}, staticResolver{})

	docs := service.Normalize(context.Background(), []models.RawInput{
		{Kind: models.DocumentKindFile, Name: "Plan.TXT", Data: []byte("План проекта")},
		{Kind: models.DocumentKindFile, Name: "photo.png", Data: []byte{1, 2, 3}},
		{Kind: models.DocumentKindFile, Name: "empty.txt"},
		{Kind: models.DocumentKindFile, Name: "notes.txt", Data: []byte("Заметки"), Size: 100},
	})

	require.Len(t, docs, 2)
	assert.Equal(t, "Plan.TXT", docs[0].Name)
	assert.Equal(t, ".txt", docs[0].Format)
	assert.Equal(t, "План проекта", docs[0].Text)
	assert.Equal(t, 1, docs[0].PageCount)
	assert.Equal(t, int64(len("План проекта")), docs[0].SizeBytes)
	assert.Equal(t, int64(100), docs[1].SizeBytes)
}

func TestNormalize_WikiTree(t *testing.T) {
	wiki := &fakeWiki{
		creds: true,
		pages: map[string]models.WikiPage{
			"1": {ID: "1", Title: "Проект", Body: "<p>Корень</p>"},
			"2": {ID: "2", Title: "Архитектура", Body: "<p>Схема</p>"},
		},
		children: map[string][]models.WikiPageNode{
			"1": {{ID: "2", Title: "Архитектура"}},
		},
		attachments: map[string][]models.WikiAttachment{
			"1": {{ID: "a", Title: "readme.txt", MediaType: "text/plain", DownloadLink: "/download/a"}},
			"2": {
				{ID: "b", Title: "risks", MediaType: "text/plain", DownloadLink: "/download/b"},
				{ID: "c", Title: "logo.png", MediaType: "image/png", DownloadLink: "/download/c"},
			},
		},
		files: map[string][]byte{
			"/download/a": []byte("Инструкция"),
			"/download/b": []byte("Риски"),
		},
	}
	service := newService(wiki, staticResolver{id: "1"})

	docs := service.Normalize(context.Background(), []models.RawInput{
		{Kind: models.DocumentKindWikiPage, URL: "https://wiki.example.com/x/ABC"},
	})

	require.Len(t, docs, 1)
	doc := docs[0]
	assert.Equal(t, "Confluence: Проект (+ 1 дочерних страниц + 2 файлов)", doc.Name)
	assert.Equal(t, models.DocumentKindWikiPage, doc.Kind)
	assert.Equal(t, 1, doc.ChildPageCount)
	assert.Equal(t, 2, doc.AttachmentCount)
	assert.Equal(t, 2, doc.PageCount)

	root := strings.Index(doc.Text, "--- ГЛАВНАЯ СТРАНИЦА: Проект ---\nКорень")
	child := strings.Index(doc.Text, "---     ДОЧЕРНЯЯ СТРАНИЦА (уровень 2): Архитектура ---\nСхема")
	rootFile := strings.Index(doc.Text, "--- ВЛОЖЕННЫЙ ФАЙЛ (главная страница): readme.txt ---\nИнструкция")
	childFile := strings.Index(doc.Text, "--- ВЛОЖЕННЫЙ ФАЙЛ (со страницы 'Архитектура'): risks ---\nРиски")
	require.True(t, root >= 0 && child > root && rootFile > child && childFile > rootFile, doc.Text)
}

func TestNormalize_WikiWithoutCredentials(t *testing.T) {
	service := newService(&fakeWiki{}, staticResolver{id: "77"})

	docs := service.Normalize(context.Background(), []models.RawInput{
		{Kind: models.DocumentKindWikiPage, URL: "https://wiki.example.com/x/77"},
	})

	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "CONFLUENCE_USERNAME")
	assert.Contains(t, docs[0].Name, "Confluence страница (ID: 77)")
	assert.Equal(t, 0, docs[0].ChildPageCount)
}

func TestNormalize_WikiRootFetchFailure(t *testing.T) {
	service := newService(&fakeWiki{creds: true}, staticResolver{id: "404"})

	docs := service.Normalize(context.Background(), []models.RawInput{
		{Kind: models.DocumentKindWikiPage, URL: "https://wiki.example.com/pages/404"},
	})

	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "СТРАНИЦА НЕ НАЙДЕНА (404)")
	assert.Contains(t, docs[0].Name, "Ошибка загрузки (ID: 404)")
}

func TestNormalize_UnresolvedLink(t *testing.T) {
	service := newService(&fakeWiki{creds: true}, staticResolver{err: &confluence.ResolutionError{URL: "u", Strategies: []string{"direct-id"}}})

	docs := service.Normalize(context.Background(), []models.RawInput{
		{Kind: models.DocumentKindWikiPage, URL: "https://wiki.example.com/display/X"},
	})

	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "НЕ УДАЛОСЬ ОПРЕДЕЛИТЬ СТРАНИЦУ")
	assert.Equal(t, 1, docs[0].PageCount)
}
