package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ternarybob/arbor"
	"github.com/xuri/excelize/v2"
)

// XLSXExtractor reads spreadsheets sheet by sheet, one line per non-blank row.
// Legacy binary .xls workbooks fall back to printable text recovery.
type XLSXExtractor struct {
	logger arbor.ILogger
}

// NewXLSXExtractor creates a spreadsheet extractor
func NewXLSXExtractor(logger arbor.ILogger) *XLSXExtractor {
	return &XLSXExtractor{logger: logger}
}

// ExtractText implements interfaces.TextExtractor
func (e *XLSXExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if !isZip(data) {
		e.logger.Debug().Int("bytes", len(data)).Msg("Not an OOXML workbook - recovering printable text")
		return printableText(data), nil
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	var out strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			e.logger.Warn().Err(err).Str("sheet", sheet).Msg("Failed to read sheet rows")
			continue
		}

		out.WriteString(fmt.Sprintf("\n--- Лист: %s ---\n", sheet))
		for _, row := range rows {
			if isBlankRow(row) {
				continue
			}
			out.WriteString(strings.Join(row, " | "))
			out.WriteByte('\n')
		}
	}

	return out.String(), nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
