// -----------------------------------------------------------------------
// Text Extractor Interface - Extract plain text from document binaries
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// TextExtractor converts document bytes to plain text.
// Implementations insert page-break markers when the format has pages.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// ExtractorRegistry dispatches extraction on the file extension
type ExtractorRegistry interface {
	// Supports reports whether ext (lower case, with leading dot) has an extractor
	Supports(ext string) bool
	Extract(ctx context.Context, fileName string, data []byte) (string, error)
}
