package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/arbor"
)

const (
	tableStartMarker = "--- Таблица ---"
	tableEndMarker   = "--- Конец таблицы ---"
)

// DOCXExtractor reads WordprocessingML documents. Top-level paragraphs come
// first, followed by every table framed by table markers. Legacy binary .doc
// files fall back to printable text recovery.
type DOCXExtractor struct {
	logger arbor.ILogger
}

// NewDOCXExtractor creates a Word document extractor
func NewDOCXExtractor(logger arbor.ILogger) *DOCXExtractor {
	return &DOCXExtractor{logger: logger}
}

// ExtractText implements interfaces.TextExtractor
func (e *DOCXExtractor) ExtractText(ctx context.Context, data []byte) (string, error) {
	if !isZip(data) {
		e.logger.Debug().Int("bytes", len(data)).Msg("Not an OOXML package - recovering printable text")
		return printableText(data), nil
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx package: %w", err)
	}

	var doc *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			doc = f
			break
		}
	}
	if doc == nil {
		return "", fmt.Errorf("docx package has no word/document.xml")
	}

	rc, err := doc.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open document.xml: %w", err)
	}
	defer rc.Close()

	return parseWordXML(rc)
}

func isZip(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], []byte("PK\x03\x04"))
}

type wordTable [][]string

// parseWordXML streams document.xml. Nested tables are flattened into the
// text of their enclosing cell.
func parseWordXML(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		tables     []wordTable
		table      wordTable
		row        []string
		cell       []string
		para       strings.Builder
		tblDepth   int
		inText     bool
		inRun      bool
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to parse document.xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					table = nil
				}
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					cell = nil
				}
			case "p":
				para.Reset()
			case "r":
				inRun = true
			case "t":
				inText = inRun
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				text := para.String()
				if tblDepth == 0 {
					if strings.TrimSpace(text) != "" {
						paragraphs = append(paragraphs, text)
					}
				} else {
					cell = append(cell, text)
				}
				para.Reset()
			case "tc":
				if tblDepth == 1 {
					row = append(row, strings.TrimSpace(strings.Join(cell, "\n")))
				}
			case "tr":
				if tblDepth == 1 {
					table = append(table, row)
				}
			case "tbl":
				if tblDepth == 1 {
					tables = append(tables, table)
				}
				if tblDepth > 0 {
					tblDepth--
				}
			}
		}
	}

	var out strings.Builder
	for _, p := range paragraphs {
		out.WriteString(p)
		out.WriteByte('\n')
	}
	for _, tbl := range tables {
		out.WriteString("\n" + tableStartMarker + "\n")
		for _, cells := range tbl {
			out.WriteString(strings.Join(cells, " | "))
			out.WriteByte('\n')
		}
		out.WriteString(tableEndMarker + "\n")
	}

	return out.String(), nil
}
