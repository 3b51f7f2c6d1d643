package analysis

import (
	"fmt"
	"strings"

	"github.com/ternarybob/dossier/internal/models"
)

const (
	// DefaultDocumentCharLimit is the per-document ceiling in characters
	DefaultDocumentCharLimit = 8000
	// DefaultContextCharLimit is the ceiling of the whole context in characters
	DefaultContextCharLimit = 120000

	headShare = 70 // percent of the per-document budget kept from the start

	ElisionStartMarker     = "... [НАЧАЛО ПРОПУСКА: середина документа сокращена для экономии токенов] ..."
	ElisionEndMarker       = "... [КОНЕЦ ПРОПУСКА: далее окончание документа] ..."
	ContextTruncatedMarker = "... [КОНТЕКСТ ОБРЕЗАН: превышен общий лимит размера] ..."
)

var documentSeparator = strings.Repeat("=", 80)

// ContextBuilder assembles normalized documents into one bounded text
type ContextBuilder struct {
	DocumentCharLimit int
	ContextCharLimit  int
}

// NewContextBuilder creates a builder; non-positive limits select the defaults
func NewContextBuilder(documentLimit, contextLimit int) *ContextBuilder {
	if documentLimit <= 0 {
		documentLimit = DefaultDocumentCharLimit
	}
	if contextLimit <= 0 {
		contextLimit = DefaultContextCharLimit
	}
	return &ContextBuilder{DocumentCharLimit: documentLimit, ContextCharLimit: contextLimit}
}

// BuildContext renders every document with its provenance header. Oversized
// documents keep their head and tail around elision markers; an oversized
// result is cut and ends with ContextTruncatedMarker.
func (b *ContextBuilder) BuildContext(docs []models.Document) string {
	var sb strings.Builder
	sb.WriteString("ДОКУМЕНТЫ ДЛЯ АНАЛИЗА:\n\n")

	for i, doc := range docs {
		sb.WriteString(fmt.Sprintf("ДОКУМЕНТ %d: %s\n", i+1, doc.Name))
		sb.WriteString(fmt.Sprintf("Тип: %s\n", doc.Kind))
		switch doc.Kind {
		case models.DocumentKindFile:
			sb.WriteString(fmt.Sprintf("Формат: %s\n", doc.Format))
		case models.DocumentKindWikiPage:
			sb.WriteString(fmt.Sprintf("URL: %s\n", doc.Source))
		}
		sb.WriteString(fmt.Sprintf("Количество страниц: %d\n", doc.PageCount))
		sb.WriteString("СОДЕРЖИМОЕ:\n")
		sb.WriteString(truncateDocument(doc.Text, b.DocumentCharLimit))
		sb.WriteString("\n" + documentSeparator + "\n\n")
	}

	return truncateContext(sb.String(), b.ContextCharLimit)
}

// truncateDocument keeps 70% of limit from the head and 30% from the tail
func truncateDocument(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	head := limit * headShare / 100
	if head < 1 {
		head = 1
	}
	tail := limit - head
	if tail < 1 {
		tail = 1
	}
	omitted := len(runes) - head - tail

	return fmt.Sprintf("%s\n%s\n(пропущено символов: %d)\n%s\n%s",
		string(runes[:head]),
		ElisionStartMarker,
		omitted,
		ElisionEndMarker,
		string(runes[len(runes)-tail:]),
	)
}

func truncateContext(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "\n" + ContextTruncatedMarker + "\n"
}
