package models

import "strings"

// DocumentKind distinguishes uploaded files from wiki page trees
type DocumentKind string

const (
	DocumentKindFile     DocumentKind = "file"
	DocumentKindWikiPage DocumentKind = "wiki-page"
)

// PageMarker prefixes every page-break marker inserted by the extractors
const PageMarker = "--- Страница"

// RawInput is a document descriptor collected while waiting for documents
// and normalized when the analysis starts.
type RawInput struct {
	Kind   DocumentKind `json:"kind"`
	Name   string       `json:"name"`
	FileID string       `json:"file_id,omitempty"`
	Data   []byte       `json:"data,omitempty"` // file bytes downloaded at submission time
	Size   int64        `json:"size,omitempty"`
	URL    string       `json:"url,omitempty"` // wiki page link
}

// Document represents one analyzable source with extracted text
type Document struct {
	Name            string       `json:"name"`
	Kind            DocumentKind `json:"kind"`
	Format          string       `json:"format,omitempty"` // file extension when Kind is file
	Source          string       `json:"source,omitempty"` // wiki URL when Kind is wiki-page
	Text            string       `json:"text"`
	PageCount       int          `json:"page_count"`
	ChildPageCount  int          `json:"child_page_count,omitempty"`
	AttachmentCount int          `json:"attachment_count,omitempty"`
	SizeBytes       int64        `json:"size_bytes,omitempty"`
}

// CountPages returns the number of page-break markers in text, minimum 1
func CountPages(text string) int {
	n := strings.Count(text, PageMarker)
	if n < 1 {
		return 1
	}
	return n
}
