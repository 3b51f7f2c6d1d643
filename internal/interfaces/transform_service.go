package interfaces

// TransformService converts wiki storage markup to analyzable text
type TransformService interface {
	// HTMLToMarkdown converts HTML content to markdown
	// baseURL is used for resolving relative links
	HTMLToMarkdown(html string, baseURL string) (string, error)

	// HTMLToText flattens HTML into plain text, one block element per line
	HTMLToText(html string) (string, error)
}
