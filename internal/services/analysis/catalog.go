// Package analysis runs the batched artifact sweep: it builds the bounded
// document context, asks the text-generation endpoint about each batch of
// required artifacts and parses the free-text replies into verdicts.
package analysis

import (
	"strings"

	"github.com/ternarybob/dossier/internal/models"
)

// ProjectType is a project category that selects extra catalog groups
type ProjectType struct {
	Code string
	Name string
}

// ProjectTypes in canonical order
var ProjectTypes = []ProjectType{
	{Code: "BI", Name: "Бизнес-аналитика"},
	{Code: "DWH", Name: "Хранилище данных"},
	{Code: "RPA", Name: "Роботизация процессов"},
	{Code: "MDM", Name: "Управление мастер-данными"},
}

// ArtifactGroup is a titled list of required artifacts
type ArtifactGroup struct {
	Key   string
	Title string
	Items []string
}

// Catalog groups keyed by group key
var artifactGroups = map[string]ArtifactGroup{
	"general": {
		Key:   "general",
		Title: "Общие требования",
		Items: []string{
			"Паспорт проекта",
			"Полное описание решения/системы (предназначение, цели, задачи)",
			"Схема взаимодействия систем",
			"Матрица ответственности (RACI)",
			"Перечень заинтересованных сторон",
		},
	},
	"technical": {
		Key:   "technical",
		Title: "Техническая документация",
		Items: []string{
			"Архитектурная схема решения",
			"Описание инфраструктурных компонентов",
			"Конфигурационные файлы (с примерами заполнения)",
			"Логины/пароли/ключи доступа",
			"Параметры подключения к источникам данных",
			"Версии ПО",
			"Список используемых библиотек/зависимостей",
			"Инструкция по развертыванию решения",
		},
	},
	"bi": {
		Key:   "bi",
		Title: "Для BI-проектов дополнительно",
		Items: []string{
			"Метаданные всех отчетов",
			"Описание источников данных",
			"Логика расчетов показателей (техническая - формулы, описание)",
			"Правила/стандарты визуализации",
			"Пользовательская документация",
			"История изменений отчетов",
			"Документированные SQL-запросы",
			"Описание процессов ETL",
			"Схемы баз данных",
		},
	},
	"rpa": {
		Key:   "rpa",
		Title: "Для RPA-проектов дополнительно",
		Items: []string{
			"Сценарии автоматизации (bot-процессы)",
			"Пути к исполняемым файлам",
			"Настройки планировщика задач",
			"Логи работы роботов - пути",
			"Описание контрольных точек",
			"Правила масштабирования",
		},
	},
	"dwh": {
		Key:   "dwh",
		Title: "Для DWH-проектов дополнительно",
		Items: []string{
			"Словарь данных",
			"Матрица соответствия источников и целей",
			"Правила очистки данных",
			"Логика преобразования данных",
			"План загрузки данных",
			"Правила управления версиями",
			"Стратегия архивации",
			"Описание процессов ETL",
			"Документированные SQL-запросы",
			"Схемы баз данных",
		},
	},
	"operations": {
		Key:   "operations",
		Title: "Операционные процедуры",
		Items: []string{
			"Инструкция по эксплуатации",
			"Процедура восстановления после сбоя",
			"План обслуживания",
			"Алгоритм действий при инцидентах",
			"Порядок внедрения обновлений",
		},
	},
	"testing": {
		Key:   "testing",
		Title: "Тестирование и качество",
		Items: []string{
			"Тест-кейсы",
			"Результаты тестирования",
			"Критерии качества данных",
			"Метрики производительности",
			"План мониторинга",
		},
	},
	"changes": {
		Key:   "changes",
		Title: "Управление изменениями",
		Items: []string{
			"Журнал изменений",
			"Процедура согласования изменений",
			"Внедренные улучшения",
			"Запланированные доработки",
		},
	},
}

// baselineGroups apply to every project
var baselineGroups = []string{"general", "technical", "operations", "testing", "changes"}

// projectTypeGroups maps a project type code to its extra group. MDM has none.
var projectTypeGroups = map[string]string{
	"BI":  "bi",
	"DWH": "dwh",
	"RPA": "rpa",
}

// BuildCatalog returns the required artifacts for the given project types:
// the baseline groups, then the project groups in canonical type order.
// A name repeated across groups is kept at its first occurrence.
func BuildCatalog(projectTypes []string) []models.RequiredArtifact {
	selected := make(map[string]bool, len(projectTypes))
	for _, code := range projectTypes {
		selected[strings.ToUpper(strings.TrimSpace(code))] = true
	}

	keys := append([]string(nil), baselineGroups...)
	for _, pt := range ProjectTypes {
		if group, ok := projectTypeGroups[pt.Code]; ok && selected[pt.Code] {
			keys = append(keys, group)
		}
	}

	seen := make(map[string]bool)
	var catalog []models.RequiredArtifact
	for _, key := range keys {
		group := artifactGroups[key]
		for _, item := range group.Items {
			if seen[item] {
				continue
			}
			seen[item] = true
			catalog = append(catalog, models.RequiredArtifact{Name: item, Group: key})
		}
	}
	return catalog
}

// GroupTitle returns the display title of a catalog group
func GroupTitle(key string) string {
	if g, ok := artifactGroups[key]; ok {
		return g.Title
	}
	return key
}

// ProjectTypeName returns the display name of a project type code
func ProjectTypeName(code string) string {
	for _, pt := range ProjectTypes {
		if strings.EqualFold(pt.Code, code) {
			return pt.Name
		}
	}
	return code
}

// ParseProjectTypes reads project type codes from free text. Comma-separated
// exact codes are tried first; failing that, any code or full name mentioned
// anywhere in the text counts. The result follows canonical order without
// duplicates.
func ParseProjectTypes(text string) []string {
	text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "📋"))

	found := make(map[string]bool)
	compact := strings.ToUpper(strings.Join(strings.Fields(text), ""))
	for _, part := range strings.Split(compact, ",") {
		for _, pt := range ProjectTypes {
			if part == pt.Code {
				found[pt.Code] = true
			}
		}
	}

	if len(found) == 0 {
		upper := strings.ToUpper(text)
		for _, pt := range ProjectTypes {
			if strings.Contains(upper, pt.Code) || strings.Contains(upper, strings.ToUpper(pt.Name)) {
				found[pt.Code] = true
			}
		}
	}

	var codes []string
	for _, pt := range ProjectTypes {
		if found[pt.Code] {
			codes = append(codes, pt.Code)
		}
	}
	return codes
}
