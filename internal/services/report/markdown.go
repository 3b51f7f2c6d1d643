package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/dossier/internal/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ReportTitle heads the PDF report
const ReportTitle = "Отчет по анализу документации ИТ проекта"

// Placeholders the analysis engine leaves in empty labels; the report omits them.
const (
	sourcePlaceholder      = "Не указан"
	descriptionPlaceholder = "Описание отсутствует"
)

var statusLabels = map[models.VerdictStatus]string{
	models.StatusFound:    "✓ НАЙДЕН",
	models.StatusPartial:  "◐ ЧАСТИЧНО НАЙДЕН",
	models.StatusNotFound: "✗ НЕ НАЙДЕН",
}

// BuildMarkdown lays out the report for result as markdown. Documents fall back
// to result.Documents when none are passed.
func BuildMarkdown(result *models.AnalysisResult, projectTypes []string, documents []models.Document) string {
	if len(documents) == 0 {
		documents = result.Documents
	}
	if len(projectTypes) == 0 {
		projectTypes = result.ProjectTypes
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", ReportTitle)

	writeAnalysisInfo(&b, result, projectTypes, documents)
	writeSummary(&b, result)
	writeDetails(&b, result)
	writeDocuments(&b, documents)

	return b.String()
}

func writeAnalysisInfo(b *strings.Builder, result *models.AnalysisResult, projectTypes []string, documents []models.Document) {
	at := result.FinishedAt
	if at.IsZero() {
		at = time.Now()
	}

	b.WriteString("## Информация об анализе\n\n")
	fmt.Fprintf(b, "**Дата анализа:** %s\n\n", at.Format("02.01.2006 15:04"))
	fmt.Fprintf(b, "**Типы проектов:** %s\n\n", escape(strings.Join(projectTypes, ", ")))
	fmt.Fprintf(b, "**Количество документов:** %d\n\n", len(documents))
	if result.Model != "" {
		fmt.Fprintf(b, "**Модель:** %s\n\n", escape(result.Model))
	}
	if result.RunID != "" {
		fmt.Fprintf(b, "**Идентификатор анализа:** %s\n\n", escape(result.RunID))
	}
	if !result.StartedAt.IsZero() && !result.FinishedAt.IsZero() {
		fmt.Fprintf(b, "**Длительность:** %s\n\n", result.FinishedAt.Sub(result.StartedAt).Round(time.Second))
	}
}

func writeSummary(b *strings.Builder, result *models.AnalysisResult) {
	b.WriteString("## Сводка результатов\n\n")
	b.WriteString("| Показатель | Количество |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(b, "| Всего артефактов | %d |\n", result.Summary.Total)
	fmt.Fprintf(b, "| Найдено | %d |\n", result.Summary.Found)
	fmt.Fprintf(b, "| Найдено частично | %d |\n", result.Summary.Partial)
	fmt.Fprintf(b, "| Не найдено | %d |\n\n", result.Summary.NotFound)
}

func writeDetails(b *strings.Builder, result *models.AnalysisResult) {
	b.WriteString("## Детальные результаты\n\n")

	sections := []struct {
		title    string
		verdicts []models.ArtifactVerdict
		status   models.VerdictStatus
	}{
		{"Найденные артефакты", result.Found, models.StatusFound},
		{"Частично найденные артефакты", result.Partial, models.StatusPartial},
		{"Не найденные артефакты", result.NotFound, models.StatusNotFound},
	}

	for _, section := range sections {
		if len(section.verdicts) == 0 {
			continue
		}
		fmt.Fprintf(b, "### %s\n\n", section.title)
		for _, v := range section.verdicts {
			writeVerdict(b, v, section.status)
		}
	}
}

func writeVerdict(b *strings.Builder, v models.ArtifactVerdict, status models.VerdictStatus) {
	name := strings.TrimSpace(v.Name)
	if name == "" {
		name = "Неизвестный артефакт"
	}
	fmt.Fprintf(b, "**%s**\n\n", escape(name))
	fmt.Fprintf(b, "**Статус:** %s\n\n", statusLabels[status])

	if source := strings.TrimSpace(v.Source); source != "" && source != sourcePlaceholder {
		fmt.Fprintf(b, "**Источник:** %s\n\n", escape(source))
	}
	if description := strings.TrimSpace(v.Description); description != "" && description != descriptionPlaceholder {
		fmt.Fprintf(b, "**Описание:** %s\n\n", escape(description))
	}
}

func writeDocuments(b *strings.Builder, documents []models.Document) {
	b.WriteString("---\n\n## Проанализированные документы\n\n")

	if len(documents) == 0 {
		b.WriteString("Документы для анализа не найдены.\n\n")
		return
	}

	printer := message.NewPrinter(language.Russian)
	for i, doc := range documents {
		name := doc.Name
		if name == "" {
			name = "Неизвестный документ"
		}
		fmt.Fprintf(b, "**Документ %d:** %s\n\n", i+1, escape(name))

		switch doc.Kind {
		case models.DocumentKindFile:
			format := doc.Format
			if format == "" {
				format = "неизвестный формат"
			}
			fmt.Fprintf(b, "**Тип:** Файл (%s)\n\n", escape(format))
			if doc.SizeBytes > 0 {
				fmt.Fprintf(b, "**Размер файла:** %s\n\n", formatSize(doc.SizeBytes))
			}
		case models.DocumentKindWikiPage:
			b.WriteString("**Тип:** Confluence страница\n\n")
			if doc.Source != "" {
				fmt.Fprintf(b, "**URL:** %s\n\n", doc.Source)
			}
			if doc.ChildPageCount > 0 {
				fmt.Fprintf(b, "**Дочерних страниц:** %d\n\n", doc.ChildPageCount)
			}
			if doc.AttachmentCount > 0 {
				fmt.Fprintf(b, "**Вложений:** %d\n\n", doc.AttachmentCount)
			}
		}

		if doc.PageCount > 0 {
			fmt.Fprintf(b, "**Количество страниц:** %d\n\n", doc.PageCount)
		}
		if n := len([]rune(doc.Text)); n > 0 {
			fmt.Fprintf(b, "**Объем текста:** %s символов\n\n", printer.Sprintf("%d", n))
		}
	}
}

func formatSize(size int64) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%.1f МБ", float64(size)/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%.1f КБ", float64(size)/1024)
	default:
		return fmt.Sprintf("%d байт", size)
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"#", `\#`,
	"|", `\|`,
	"<", `\<`,
)

// escape flattens model-produced text into a single markdown-safe line
func escape(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return markdownEscaper.Replace(s)
}
