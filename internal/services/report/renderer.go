package report

import (
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

const (
	pageWidth   = 180.0 // A4 width minus margins
	pageBottom  = 297.0 - 15.0
	lineHeight  = 5.0
	maxRowLines = 8
)

type pdfRenderer struct {
	pdf       *fpdf.Fpdf
	source    []byte
	logger    arbor.ILogger
	font      string
	size      float64
	bold      bool
	italic    bool
	inList    bool
	listLevel int
	translate func(string) string
}

func (r *pdfRenderer) render(node ast.Node) error {
	return ast.Walk(node, r.walk)
}

func (r *pdfRenderer) updateFont() {
	style := ""
	if r.bold {
		style += "B"
	}
	if r.italic {
		style += "I"
	}
	r.pdf.SetFont(r.font, style, r.size)
}

func (r *pdfRenderer) write(s string) {
	r.pdf.Write(lineHeight, r.translate(s))
}

func (r *pdfRenderer) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch n.Kind() {
	case ast.KindHeading:
		return r.handleHeading(n.(*ast.Heading), entering)
	case ast.KindParagraph:
		return r.handleParagraph(entering)
	case ast.KindText:
		return r.handleText(n.(*ast.Text), entering)
	case ast.KindEmphasis:
		return r.handleEmphasis(n.(*ast.Emphasis), entering)
	case ast.KindCodeSpan:
		return r.handleCodeSpan(n.(*ast.CodeSpan), entering)
	case ast.KindAutoLink:
		if entering {
			r.write(string(n.(*ast.AutoLink).URL(r.source)))
		}
		return ast.WalkSkipChildren, nil
	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		if entering {
			r.renderCodeBlock(n.Lines())
		}
		return ast.WalkSkipChildren, nil
	case ast.KindList:
		return r.handleList(entering)
	case ast.KindListItem:
		return r.handleListItem(n, entering)
	case ast.KindThematicBreak:
		if entering {
			r.pdf.Ln(2)
			r.pdf.Line(15, r.pdf.GetY(), 195, r.pdf.GetY())
			r.pdf.Ln(3)
		}
	case extast.KindTable:
		return r.handleTable(n.(*extast.Table), entering)
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleHeading(n *ast.Heading, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.pdf.Ln(6)
		size := 10.0
		switch n.Level {
		case 1:
			size = 16
		case 2:
			size = 13
		case 3:
			size = 11
		}
		r.pdf.SetFont(r.font, "B", size)
		if n.Level <= 2 {
			r.pdf.SetTextColor(46, 64, 87)
		}
	} else {
		r.pdf.Ln(8)
		r.pdf.SetTextColor(0, 0, 0)
		r.updateFont()
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleParagraph(entering bool) (ast.WalkStatus, error) {
	if !entering {
		if r.inList {
			r.pdf.Ln(lineHeight)
		} else {
			r.pdf.Ln(7)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleText(n *ast.Text, entering bool) (ast.WalkStatus, error) {
	if entering {
		r.write(unescape(string(n.Segment.Value(r.source))))
		if n.SoftLineBreak() || n.HardLineBreak() {
			r.write(" ")
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleEmphasis(n *ast.Emphasis, entering bool) (ast.WalkStatus, error) {
	if n.Level == 2 {
		r.bold = entering
	} else {
		r.italic = entering
	}
	r.updateFont()
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleCodeSpan(n *ast.CodeSpan, entering bool) (ast.WalkStatus, error) {
	if entering {
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if textNode, ok := c.(*ast.Text); ok {
				r.write(string(textNode.Segment.Value(r.source)))
			}
		}
	}
	return ast.WalkSkipChildren, nil
}

func (r *pdfRenderer) renderCodeBlock(lines *text.Segments) {
	r.pdf.Ln(2)
	r.pdf.SetFillColor(245, 245, 245)
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		r.pdf.MultiCell(0, lineHeight, r.translate(strings.TrimRight(string(line.Value(r.source)), "\n")), "", "L", true)
	}
	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(2)
}

func (r *pdfRenderer) handleList(entering bool) (ast.WalkStatus, error) {
	if entering {
		r.inList = true
		r.listLevel++
	} else {
		r.listLevel--
		if r.listLevel == 0 {
			r.inList = false
			r.pdf.Ln(2)
		}
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleListItem(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if entering {
		indent := float64(r.listLevel) * 5.0
		r.pdf.SetX(15 + indent)
		r.write("• ")
		return ast.WalkContinue, nil
	}
	// Tight list items hold a TextBlock, which ends without a line break.
	if _, ok := n.LastChild().(*ast.Paragraph); !ok {
		r.pdf.Ln(lineHeight)
	}
	return ast.WalkContinue, nil
}

func (r *pdfRenderer) handleTable(n *extast.Table, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	var rows [][]string
	var findRows func(node ast.Node)
	findRows = func(node ast.Node) {
		for child := node.FirstChild(); child != nil; child = child.NextSibling() {
			switch child.(type) {
			case *extast.TableRow, *extast.TableHeader:
				rows = append(rows, r.extractRow(child))
			}
		}
	}
	findRows(n)

	r.renderTable(rows)
	return ast.WalkSkipChildren, nil
}

func (r *pdfRenderer) extractRow(n ast.Node) []string {
	var row []string
	for cell := n.FirstChild(); cell != nil; cell = cell.NextSibling() {
		if _, ok := cell.(*extast.TableCell); ok {
			row = append(row, r.translate(unescape(cellText(cell, r.source))))
		}
	}
	return row
}

func cellText(n ast.Node, source []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))
		case *ast.AutoLink:
			b.Write(t.URL(source))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func (r *pdfRenderer) renderTable(rows [][]string) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return
	}
	numCols := len(rows[0])

	r.pdf.Ln(2)

	fontSize := 9.0
	cellLine := 5.0
	colWidths := r.columnWidths(rows, numCols, fontSize)

	for i, row := range rows {
		if i == 0 {
			r.pdf.SetFont(r.font, "B", fontSize)
		} else {
			r.pdf.SetFont(r.font, "", fontSize)
		}

		maxLines := 1
		for j, cell := range row {
			if j < numCols {
				if lines := len(r.wrap(cell, colWidths[j]-2)); lines > maxLines {
					maxLines = lines
				}
			}
		}
		if maxLines > maxRowLines {
			maxLines = maxRowLines
		}

		rowHeight := float64(maxLines)*cellLine + 2
		startY := r.pdf.GetY()
		startX := r.pdf.GetX()
		if startY+rowHeight > pageBottom {
			r.pdf.AddPage()
			startY = r.pdf.GetY()
		}

		x := startX
		for j := 0; j < numCols; j++ {
			cell := ""
			if j < len(row) {
				cell = row[j]
			}
			if i == 0 {
				r.pdf.SetFillColor(46, 64, 87)
				r.pdf.SetTextColor(255, 255, 255)
				r.pdf.Rect(x, startY, colWidths[j], rowHeight, "FD")
			} else {
				r.pdf.SetFillColor(245, 245, 220)
				r.pdf.Rect(x, startY, colWidths[j], rowHeight, "FD")
			}
			r.pdf.SetXY(x+1, startY+1)
			r.renderCell(cell, colWidths[j]-2, cellLine, maxLines)
			r.pdf.SetTextColor(0, 0, 0)
			x += colWidths[j]
		}

		r.pdf.SetXY(startX, startY+rowHeight)
	}

	r.pdf.SetFillColor(255, 255, 255)
	r.pdf.Ln(4)
	r.updateFont()
}

// columnWidths sizes columns from measured content, bounded to the page width
func (r *pdfRenderer) columnWidths(rows [][]string, numCols int, fontSize float64) []float64 {
	colWidths := make([]float64, numCols)
	for i, row := range rows {
		style := ""
		if i == 0 {
			style = "B"
		}
		r.pdf.SetFont(r.font, style, fontSize)
		for j, cell := range row {
			if j < numCols {
				if w := r.pdf.GetStringWidth(cell) + 4; w > colWidths[j] {
					colWidths[j] = w
				}
			}
		}
	}

	minWidth := 20.0
	maxWidth := pageWidth * 2 / 3
	total := 0.0
	for j := range colWidths {
		if colWidths[j] < minWidth {
			colWidths[j] = minWidth
		}
		if colWidths[j] > maxWidth {
			colWidths[j] = maxWidth
		}
		total += colWidths[j]
	}

	if total > pageWidth {
		scale := pageWidth / total
		for j := range colWidths {
			colWidths[j] *= scale
		}
	}
	return colWidths
}

// wrap splits text into lines no wider than width using measured string widths
func (r *pdfRenderer) wrap(s string, width float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 || width <= 0 {
		return []string{s}
	}

	var lines []string
	current := ""
	currentWidth := 0.0
	spaceWidth := r.pdf.GetStringWidth(" ")
	for _, word := range words {
		wordWidth := r.pdf.GetStringWidth(word)
		switch {
		case current == "":
			current, currentWidth = word, wordWidth
		case currentWidth+spaceWidth+wordWidth <= width:
			current += " " + word
			currentWidth += spaceWidth + wordWidth
		default:
			lines = append(lines, current)
			current, currentWidth = word, wordWidth
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func (r *pdfRenderer) renderCell(s string, width, cellLine float64, maxLines int) {
	if s == "" {
		return
	}
	lines := r.wrap(s, width)
	x := r.pdf.GetX()
	for i := 0; i < len(lines) && i < maxLines; i++ {
		line := lines[i]
		if i == maxLines-1 && len(lines) > maxLines {
			runes := []rune(line)
			for r.pdf.GetStringWidth(string(runes)+"...") > width && len(runes) > 3 {
				runes = runes[:len(runes)-1]
			}
			line = string(runes) + "..."
		}
		r.pdf.SetX(x)
		r.pdf.CellFormat(width, cellLine, line, "", 2, "L", false, 0, "")
	}
}

// unescape drops the backslash in front of escaped ASCII punctuation
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && isASCIIPunct(s[i+1]) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isASCIIPunct(c byte) bool {
	return strings.IndexByte("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", c) >= 0
}
