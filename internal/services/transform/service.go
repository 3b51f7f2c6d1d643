package transform

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/interfaces"
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`[ \t\r\f\v]+`)
)

// blockSelector lists elements that start a new line of text. Confluence
// storage markup adds ac:/ri: macro elements; those keep their inner text.
const blockSelector = "p, div, br, li, tr, h1, h2, h3, h4, h5, h6, pre, blockquote, table, ul, ol, hr, dt, dd"

// Service converts wiki storage markup to markdown or plain text
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.TransformService = (*Service)(nil)

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// HTMLToMarkdown converts HTML content to markdown
// baseURL is used for resolving relative links
func (s *Service) HTMLToMarkdown(html string, baseURL string) (string, error) {
	if html == "" {
		return "", nil
	}

	converter := newMarkdownConverter(baseURL)
	converted, err := converter.ConvertString(html)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using fallback")
		return stripHTMLTags(html), nil
	}

	if strings.TrimSpace(converted) == "" {
		s.logger.Warn().
			Int("html_length", len(html)).
			Msg("HTML to markdown conversion produced empty output, applying fallback")
		return stripHTMLTags(html), nil
	}

	return converted, nil
}

// newMarkdownConverter resolves relative links and images against baseURL,
// keeping its scheme. The converter only takes a host and defaults to http.
func newMarkdownConverter(baseURL string) *md.Converter {
	base, err := url.Parse(baseURL)
	if err != nil || base.Host == "" {
		return md.NewConverter("", true, nil)
	}

	return md.NewConverter(base.Host, true, &md.Options{
		GetAbsoluteURL: func(selec *goquery.Selection, rawURL string, domain string) string {
			ref, err := url.Parse(rawURL)
			if err != nil || ref.Scheme == "data" {
				return rawURL
			}
			return base.ResolveReference(ref).String()
		},
	})
}

// HTMLToText flattens HTML into text with one block element per line and
// empty lines removed. Table cells in a row are joined by " | ".
func (s *Service) HTMLToText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style").Remove()
	doc.Find("td, th").Each(func(i int, cell *goquery.Selection) {
		if cell.Next().Length() > 0 {
			cell.AppendHtml(" | ")
		}
	})
	doc.Find(blockSelector).Each(func(i int, sel *goquery.Selection) {
		sel.BeforeHtml("\n")
		sel.AppendHtml("\n")
	})

	raw := doc.Text()

	lines := strings.Split(raw, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(strings.ReplaceAll(line, "\u00a0", " "), " "))
		if line != "" {
			kept = append(kept, line)
		}
	}

	text := strings.Join(kept, "\n")
	s.logger.Debug().Int("html_length", len(html)).Int("text_length", len(text)).Msg("Converted HTML to text")
	return text, nil
}

// stripHTMLTags removes basic HTML tags for fallback cases
func stripHTMLTags(htmlStr string) string {
	stripped := tagPattern.ReplaceAllString(htmlStr, " ")
	cleaned := strings.Join(strings.Fields(stripped), " ")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", "\"",
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return strings.TrimSpace(replacer.Replace(cleaned))
}
