package models

// WikiPage is a Confluence page with its storage-format body
type WikiPage struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// WikiPageNode is a descendant page discovered by the crawler.
// The root page has depth 1.
type WikiPageNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Depth int    `json:"depth"`
}

// WikiAttachment is a file attached to a Confluence page
type WikiAttachment struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	MediaType    string `json:"media_type"`
	DownloadLink string `json:"download_link"`
	SourcePage   string `json:"source_page,omitempty"` // title of the page the file was found on
}

// WikiContent is a short listing entry used by the short-link resolver
type WikiContent struct {
	ID       string                 `json:"id"`
	Title    string                 `json:"title"`
	Links    map[string]interface{} `json:"_links"`
	Metadata map[string]interface{} `json:"metadata"`
}

// TinyUI returns the short-link path of the page, if the listing carried one
func (c WikiContent) TinyUI() string {
	if c.Links == nil {
		return ""
	}
	s, _ := c.Links["tinyui"].(string)
	return s
}
