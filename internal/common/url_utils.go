package common

import (
	"net/url"
	"regexp"
	"strings"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>()\[\]"'` + "`" + `]+`)

// ExtractWikiLinks returns the wiki URLs found in a chat message, in order of
// appearance and without duplicates. A URL qualifies when its host equals
// the configured wiki host or contains "confluence".
func ExtractWikiLinks(message, wikiBaseURL string) []string {
	wikiHost := ""
	if u, err := url.Parse(wikiBaseURL); err == nil {
		wikiHost = strings.ToLower(u.Hostname())
	}

	seen := make(map[string]bool)
	var links []string
	for _, raw := range urlPattern.FindAllString(message, -1) {
		// Mattermost wraps autolinks in markdown punctuation
		raw = strings.TrimRight(raw, ".,;:!?*_>")
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if host != wikiHost && !strings.Contains(strings.ToLower(raw), "confluence") {
			continue
		}
		if !seen[raw] {
			seen[raw] = true
			links = append(links, raw)
		}
	}
	return links
}

// ShortLinkToken returns TOKEN from a short wiki link of the form .../x/TOKEN
func ShortLinkToken(pageURL string) (string, bool) {
	return segmentAfter(pageURL, "/x/")
}

// PageIDFromURL returns ID from a page link of the form .../pages/ID/... or
// .../pages/viewpage.action?pageId=ID
func PageIDFromURL(pageURL string) (string, bool) {
	if u, err := url.Parse(pageURL); err == nil {
		if v := u.Query().Get("pageId"); v != "" {
			return v, true
		}
	}
	id, ok := segmentAfter(pageURL, "/pages/")
	if !ok || strings.Contains(id, ".action") {
		return "", false
	}
	return id, true
}

func segmentAfter(s, marker string) (string, bool) {
	idx := strings.LastIndex(s, marker)
	if idx < 0 {
		return "", false
	}
	rest := s[idx+len(marker):]
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest, rest != ""
}
