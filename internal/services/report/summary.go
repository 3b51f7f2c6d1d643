package report

import (
	"fmt"
	"strings"

	"github.com/ternarybob/dossier/internal/models"
)

// DefaultSummaryLimit caps the artifacts listed in the chat summary
const DefaultSummaryLimit = 15

var statusIcons = map[models.VerdictStatus]string{
	models.StatusFound:    "✅",
	models.StatusPartial:  "🟡",
	models.StatusNotFound: "❌",
}

// SummaryMessage builds the chat message posted with the PDF report.
// At most limit artifacts are listed, found first, then partial, then missing.
func SummaryMessage(result *models.AnalysisResult, limit int) string {
	if limit < 1 {
		limit = DefaultSummaryLimit
	}

	verdicts := result.Verdicts()
	lines := make([]string, 0, limit+1)
	for i, v := range verdicts {
		if i == limit {
			lines = append(lines, fmt.Sprintf("... и еще %d артефактов", len(verdicts)-limit))
			break
		}
		name := v.Name
		if name == "" {
			name = "Без названия"
		}
		lines = append(lines, statusIcons[v.Status]+" "+name)
	}

	var b strings.Builder
	b.WriteString("📊 **Результат анализа документов**\n\n")
	b.WriteString("**Сводка:**\n")
	fmt.Fprintf(&b, "• Всего артефактов: %d\n", result.Summary.Total)
	fmt.Fprintf(&b, "• Найдено: %d\n", result.Summary.Found)
	fmt.Fprintf(&b, "• Найдено частично: %d\n", result.Summary.Partial)
	fmt.Fprintf(&b, "• Не найдено: %d\n\n", result.Summary.NotFound)
	b.WriteString("**Анализируемые артефакты:**\n")
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n**Обозначения:**\n")
	b.WriteString("✅ - Найден полностью\n")
	b.WriteString("🟡 - Найден частично\n")
	b.WriteString("❌ - Не найден\n\n")
	b.WriteString("**Детальный отчет с источниками прикреплен в PDF файле.**\n\n")
	b.WriteString("**Для нового анализа напишите:** `начать анализ` или `привет`")
	return b.String()
}
