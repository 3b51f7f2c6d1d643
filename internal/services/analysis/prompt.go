package analysis

import (
	"fmt"
	"strings"

	"github.com/ternarybob/dossier/internal/models"
)

// BuildPrompt renders the instruction for one batch. The output depends only
// on its arguments.
func BuildPrompt(context string, batch []models.RequiredArtifact, index, count int) string {
	var sb strings.Builder

	sb.WriteString("Ты эксперт по анализу ИТ документации. Твоя задача - проанализировать предоставленные документы и определить, присутствуют ли в них перечисленные артефакты проекта.\n\n")
	sb.WriteString(fmt.Sprintf("ПАКЕТ %d из %d\n\n", index, count))
	sb.WriteString("АРТЕФАКТЫ ДЛЯ ПОИСКА (оцени ТОЛЬКО их):\n")
	for i, a := range batch {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, a.Name))
	}

	sb.WriteString("\n")
	sb.WriteString(context)
	sb.WriteString("\n")

	sb.WriteString(`ИНСТРУКЦИИ ПО АНАЛИЗУ:
1. Оцени только артефакты из списка выше, в том же порядке. Не добавляй другие артефакты, не придумывай и не переименовывай их.
2. Для каждого артефакта укажи:
   - СТАТУС: НАЙДЕН, НЕ НАЙДЕН или ЧАСТИЧНО НАЙДЕН (если информация присутствует, но неполная)
   - ИСТОЧНИК: название документа и номер страницы (или раздел)
   - ОПИСАНИЕ: краткое описание найденной информации (1-2 предложения)
3. Будь точным в указании источников - обязательно указывай конкретный документ и страницу.
4. Название после "АРТЕФАКТ:" должно в точности совпадать с названием из списка.
5. Используй строго следующий формат, один блок на каждый артефакт:

АРТЕФАКТ: <точное название артефакта из списка>
СТАТУС: <НАЙДЕН/НЕ НАЙДЕН/ЧАСТИЧНО НАЙДЕН>
ИСТОЧНИК: <название документа, страница/раздел>
ОПИСАНИЕ: <краткое описание найденной информации>
---
`)
	sb.WriteString(fmt.Sprintf("\nОтветь ровно %d блоками.\n", len(batch)))

	return sb.String()
}
