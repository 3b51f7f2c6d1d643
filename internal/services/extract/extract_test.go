package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/dossier/internal/models"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestDOCXExtractor_ParagraphsThenTables(t *testing.T) {
	data := buildDOCX(t, `
<w:p><w:r><w:t>Техническое задание</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">   </w:t></w:r></w:p>
<w:tbl>
  <w:tr><w:tc><w:p><w:r><w:t>Роль</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Имя</w:t></w:r></w:p></w:tc></w:tr>
  <w:tr><w:tc><w:p><w:r><w:t>Аналитик</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>Иванов</w:t></w:r></w:p></w:tc></w:tr>
</w:tbl>
<w:p><w:r><w:t>Архитектура</w:t><w:tab/><w:t>решения</w:t></w:r></w:p>`)

	text, err := NewDOCXExtractor(arbor.NewLogger()).ExtractText(context.Background(), data)
	require.NoError(t, err)

	assert.Equal(t, "Техническое задание\nАрхитектура\tрешения\n\n"+
		"--- Таблица ---\nРоль | Имя\nАналитик | Иванов\n--- Конец таблицы ---\n", text)
}

func TestDOCXExtractor_LegacyBinaryFallback(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().Bytes([]byte("Регламент эксплуатации"))
	require.NoError(t, err)
	data := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0x00, 0x01}, encoded...)
	data = append(data, 0x00, 0x02)

	text, err := NewDOCXExtractor(arbor.NewLogger()).ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Contains(t, text, "Регламент эксплуатации")
}

func TestXLSXExtractor_SheetsAndBlankRows(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Система"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Владелец"))
	require.NoError(t, f.SetCellValue("Sheet1", "A3", "CRM"))
	require.NoError(t, f.SetCellValue("Sheet1", "B3", "Продажи"))
	_, err := f.NewSheet("Риски")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Риски", "A1", "Срыв сроков"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	text, err := NewXLSXExtractor(arbor.NewLogger()).ExtractText(context.Background(), buf.Bytes())
	require.NoError(t, err)

	assert.Contains(t, text, "--- Лист: Sheet1 ---\nСистема | Владелец\nCRM | Продажи\n")
	assert.Contains(t, text, "--- Лист: Риски ---\nСрыв сроков\n")
	assert.NotContains(t, text, "\n\n\n")
}

func TestRTFExtractor(t *testing.T) {
	src := `{\rtf1\ansi\ansicpg1251\deff0{\fonttbl{\f0 Times New Roman;}}{\colortbl;\red0\green0\blue0;}` +
		`{\*\generator Writer;}\f0 \'cf\'eb\'e0\'ed \'f2\'e5\'f1\'f2\'e8\'f0\'ee\'e2\'e0\'ed\'e8\'ff\par ` +
		`Unicode: \u1058?\u1077?\u1089?\u1090?\par Braces \{ok\}}`

	text, err := NewRTFExtractor().ExtractText(context.Background(), []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "План тестирования\nUnicode: Тест\nBraces {ok}", text)
}

func TestTextExtractor_DropsInvalidBytes(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("Журнал изменений")...)
	data = append(data, 0xFF, '!')

	text, err := TextExtractor{}.ExtractText(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "Журнал изменений!", text)
}

func TestContentStreamText(t *testing.T) {
	stream := []byte(`BT /F1 12 Tf 72 712 Td (Hello) Tj 0 -14 Td [(Wor) 20 (ld) -300 (again)] TJ ET
q 1 0 0 1 0 0 cm Q
BT <FEFF0422043504410442> Tj ET`)

	text := contentStreamText(stream)
	assert.Equal(t, "Hello\nWorld again\nТест", text)
}

func TestPDFExtractor_PageMarkers(t *testing.T) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCompression(false)
	doc.SetFont("Helvetica", "", 12)
	doc.AddPage()
	doc.Cell(40, 10, "Hello")
	doc.AddPage()
	doc.Cell(40, 10, "Second")
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))

	text, err := NewPDFExtractor(arbor.NewLogger()).ExtractText(context.Background(), buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 2, models.CountPages(text))
	assert.True(t, strings.Index(text, "--- Страница 1 ---") < strings.Index(text, "--- Страница 2 ---"))
	assert.Contains(t, text, "Hello")
	assert.Contains(t, text, "Second")
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry(arbor.NewLogger())

	for _, ext := range []string{".pdf", ".docx", ".doc", ".xlsx", ".xls", ".rtf", ".txt", "PDF"} {
		assert.True(t, registry.Supports(ext), ext)
	}
	assert.False(t, registry.Supports(".png"))

	_, err := registry.Extract(context.Background(), "image.png", []byte{1})
	assert.Error(t, err)

	_, err = registry.Extract(context.Background(), "empty.txt", nil)
	assert.Error(t, err)

	text, err := registry.Extract(context.Background(), "NOTES.TXT", []byte("заметки"))
	require.NoError(t, err)
	assert.Equal(t, "заметки", text)
}
