package conversation

import (
	"fmt"
	"strings"

	"github.com/ternarybob/dossier/internal/models"
	"github.com/ternarybob/dossier/internal/services/analysis"
)

// Card colors
const (
	colorGreen  = "#36a64f"
	colorBlue   = "#439fe0"
	colorOrange = "#ff9500"
)

const welcomeText = `🤖 **Привет! Я бот для анализа документации ИТ проектов.**

**Я умею:**
• Анализировать документы (PDF, DOCX, XLSX, RTF, TXT)
• Обрабатывать ссылки на Confluence
• Находить артефакты проекта с помощью ИИ
• Генерировать отчеты в формате PDF

**💡 Совет по Confluence:**
Всегда используйте **полный URL** из адресной строки браузера:
• ✅ ` + "`%[1]sspaces/PROJECT/pages/123456/PageName`" + `
• ✅ ` + "`%[1]sx/ABC123`"

const documentsPromptText = `📁 **Теперь предоставьте документы или ссылки для анализа:**
• Прикрепите файлы (PDF, DOCX, XLSX, RTF, TXT)
• Отправьте ссылки на Confluence
• Можно делать это в одном сообщении

💡 **Для Confluence:** используйте полный URL из адресной строки браузера`

const moreDocumentsText = `📁 **Отправьте дополнительные документы или ссылки:**

• Прикрепите файлы (PDF, DOCX, XLSX, RTF, TXT)
• Отправьте ссылки на Confluence
• Можно делать это в одном сообщении`

const noDocumentsText = `Документы не обнаружены.

**Как правильно указать документы:**

📁 **Файлы:** Прикрепите файлы к сообщению (PDF, DOCX, XLSX, RTF, TXT)

🔗 **Confluence страницы:**
• Скопируйте **полный URL** из адресной строки браузера
• Например: ` + "`%[1]sspaces/PROJECT/pages/123456/PageName`" + `
• Или короткий URL: ` + "`%[1]sx/ABC123`" + `

❌ **НЕ используйте:**
• Неполные ссылки или фрагменты URL
• Внутренние ссылки из Confluence
• Ссылки без протокола (http/https)

**Попробуйте снова!**`

const questionHintText = "💡 **Что дальше?**\n\n" +
	"• `➕ Добавить документы` - добавить еще файлы\n" +
	"• `🔄 Начать анализ` - анализировать все документы"

// Pipeline progress and failure texts
const (
	analysisStartedText   = "🔄 Начинаю анализ документов. Это может занять несколько минут..."
	documentsReadyText    = "✅ Обработано документов: %d\n🤖 Анализирую с помощью ИИ..."
	analysisFinishedText  = "✅ Анализ завершен! 📄 Генерирую PDF отчет..."
	noDocumentsParsedText = "❌ Не удалось обработать ни один документ. Проверьте формат файлов и ссылки."
	analysisFailedText    = "Произошла ошибка при анализе документов. Попробуйте еще раз."
	messageFailedText     = "Произошла ошибка при обработке сообщения"
)

func welcomePost(channelID, wikiBaseURL string) models.OutgoingPost {
	return models.OutgoingPost{
		ChannelID: channelID,
		Message:   fmt.Sprintf(welcomeText, wikiBaseURL),
		Attachments: []models.MessageAttachment{{
			Fallback: "Начать анализ - напишите: начать анализ",
			Color:    colorGreen,
			Title:    "🚀 Готовы начать анализ?",
			Text:     "Напишите команду для начала работы с ботом",
			Fields: []models.AttachmentField{{
				Title: "Доступные команды:",
				Value: "• **`начать анализ`** - запустить новый анализ\n" +
					"• **`помощь`** - показать справку\n" +
					"• **`привет`** - вернуться в главное меню",
			}},
		}},
	}
}

func projectTypesPost(channelID string) models.OutgoingPost {
	return models.OutgoingPost{
		ChannelID: channelID,
		Message: "📋 **Какой тип проекта необходимо проанализировать?**\n\n" +
			"Выберите один или несколько типов проектов:",
		Attachments: []models.MessageAttachment{{
			Fallback: "Выбор типа проекта - напишите код типа проекта",
			Color:    colorBlue,
			Title:    "📋 Выберите тип проекта",
			Text:     "Напишите код одного или нескольких типов проектов",
			Fields: []models.AttachmentField{
				{Title: "Доступные типы:", Value: projectTypeList("• **`%s`** - %s")},
				{
					Title: "Примеры команд:",
					Value: "• **`BI`** - выбрать один тип\n" +
						"• **`BI,DWH`** - выбрать несколько типов\n" +
						"• **`📋 BI`** - можно с эмодзи",
				},
			},
		}},
	}
}

func unknownProjectTypesPost(channelID string) models.OutgoingPost {
	return models.OutgoingPost{
		ChannelID: channelID,
		Message: "❌ Не найдено подходящих типов проектов.\n\n" +
			"**Доступные коды:**\n" + projectTypeList("• `%s` - %s") +
			"\n\n**Пример:** `BI` или `BI,DWH`",
	}
}

func projectTypesSelectedPost(channelID string, codes []string) models.OutgoingPost {
	names := make([]string, len(codes))
	for i, code := range codes {
		names[i] = analysis.ProjectTypeName(code)
	}
	return models.OutgoingPost{
		ChannelID: channelID,
		Message:   "✅ **Выбранные типы проектов:** " + strings.Join(names, ", ") + "\n\n" + documentsPromptText,
	}
}

func documentsReceivedPost(channelID string, total int) models.OutgoingPost {
	return models.OutgoingPost{
		ChannelID: channelID,
		Message:   fmt.Sprintf("✅ **Получено документов: %d**\n\n**Что дальше?**", total),
		Attachments: []models.MessageAttachment{{
			Fallback: "Выбор действия - напишите: анализ или добавить",
			Color:    colorGreen,
			Title:    "🎯 Что дальше?",
			Text:     "Выберите следующее действие:",
			Fields: []models.AttachmentField{{
				Title: "Доступные команды:",
				Value: "• **`анализ`** или **`🔄 начать анализ`** - анализировать все документы\n" +
					"• **`добавить`** или **`➕ добавить документы`** - добавить еще файлы",
			}},
		}},
	}
}

func restartPost(channelID string) models.OutgoingPost {
	return models.OutgoingPost{
		ChannelID: channelID,
		Attachments: []models.MessageAttachment{{
			Fallback: "Новый анализ - напишите: начать анализ",
			Color:    colorOrange,
			Title:    "🚀 Готовы к новому анализу?",
			Text:     "Напишите команду для начала нового анализа:",
			Fields: []models.AttachmentField{{
				Title: "Команды для нового анализа:",
				Value: "• **`начать анализ`** - запустить новый анализ\n" +
					"• **`привет`** - вернуться в главное меню\n" +
					"• **`🚀 новый анализ`** - можно с эмодзи",
			}},
		}},
	}
}

func textPost(channelID, message string) models.OutgoingPost {
	return models.OutgoingPost{ChannelID: channelID, Message: message}
}

func errorPost(channelID, message string) models.OutgoingPost {
	return textPost(channelID, "❌ **Ошибка:** "+message)
}

func projectTypeList(format string) string {
	lines := make([]string, len(analysis.ProjectTypes))
	for i, pt := range analysis.ProjectTypes {
		lines[i] = fmt.Sprintf(format, pt.Code, pt.Name)
	}
	return strings.Join(lines, "\n")
}
