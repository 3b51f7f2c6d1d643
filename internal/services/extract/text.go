package extract

import (
	"bytes"
	"context"
	"strings"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TextExtractor reads plain UTF-8 text, dropping invalid byte sequences
type TextExtractor struct{}

// ExtractText implements interfaces.TextExtractor
func (TextExtractor) ExtractText(_ context.Context, data []byte) (string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	return strings.ToValidUTF8(string(data), ""), nil
}
