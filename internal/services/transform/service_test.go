package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func TestHTMLToText(t *testing.T) {
	service := NewService(arbor.NewLogger())

	html := `<h1>Архитектура</h1><p>Описание <strong>решения</strong></p>
<ul><li>Компонент A</li><li>Компонент B</li></ul>
<table><tr><th>Роль</th><th>Имя</th></tr><tr><td>Аналитик</td><td>Иванов</td></tr></table>
<ac:structured-macro ac:name="info"><ac:rich-text-body><p>Важно</p></ac:rich-text-body></ac:structured-macro>`

	text, err := service.HTMLToText(html)
	require.NoError(t, err)

	assert.Equal(t, "Архитектура\nОписание решения\nКомпонент A\nКомпонент B\nРоль | Имя\nАналитик | Иванов\nВажно", text)
}

func TestHTMLToText_Empty(t *testing.T) {
	service := NewService(arbor.NewLogger())

	text, err := service.HTMLToText("  ")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestHTMLToMarkdown(t *testing.T) {
	service := NewService(arbor.NewLogger())

	markdown, err := service.HTMLToMarkdown(`<h2>План</h2><p>Текст <a href="/x/ABC">ссылка</a></p>`, "https://wiki.example.com")
	require.NoError(t, err)

	assert.Contains(t, markdown, "## План")
	assert.Contains(t, markdown, "[ссылка](https://wiki.example.com/x/ABC)")
}

func TestHTMLToMarkdown_ResolvesLinksAgainstBase(t *testing.T) {
	service := NewService(arbor.NewLogger())

	html := `<p><a href="/x/ABC">a</a> <a href="display/DOC/Page">b</a> <a href="http://other.example.com/p">c</a><img src="/download/att.png" alt="d"></p>`
	markdown, err := service.HTMLToMarkdown(html, "https://wiki.example.com/confluence/")
	require.NoError(t, err)

	assert.Contains(t, markdown, "[a](https://wiki.example.com/x/ABC)")
	assert.Contains(t, markdown, "[b](https://wiki.example.com/confluence/display/DOC/Page)")
	assert.Contains(t, markdown, "[c](http://other.example.com/p)")
	assert.Contains(t, markdown, "![d](https://wiki.example.com/download/att.png)")
	assert.NotContains(t, markdown, "%2F")
}

func TestHTMLToMarkdown_WithoutBaseKeepsRelativeLinks(t *testing.T) {
	service := NewService(arbor.NewLogger())

	markdown, err := service.HTMLToMarkdown(`<p><a href="/x/ABC">a</a></p>`, "")
	require.NoError(t, err)
	assert.Contains(t, markdown, "[a](/x/ABC)")
}

func TestStripHTMLTags(t *testing.T) {
	assert.Equal(t, "a & b c", stripHTMLTags("<p>a &amp; b</p><p>c</p>"))
}
