package extract

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

// kerning offsets below this value in a TJ array are read as word gaps
const tjWordGap = -200

// contentStreamText pulls the strings shown by text operators (Tj, TJ, ', ")
// out of a raw page content stream. Positioning operators become line breaks.
func contentStreamText(stream []byte) string {
	lx := &psLexer{src: stream}
	var out strings.Builder
	var operands []psToken

	newline := func() {
		s := out.String()
		if len(s) > 0 && !strings.HasSuffix(s, "\n") {
			out.WriteByte('\n')
		}
	}

	for {
		tok, ok := lx.next()
		if !ok {
			break
		}
		if tok.kind != psOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if s, found := lastString(operands); found {
				out.WriteString(s)
			}
		case "'", "\"":
			newline()
			if s, found := lastString(operands); found {
				out.WriteString(s)
			}
		case "TJ":
			out.WriteString(arrayText(operands))
		case "T*", "Td", "TD":
			newline()
		case "ET":
			newline()
		}
		operands = operands[:0]
	}

	return strings.TrimSpace(out.String())
}

func lastString(operands []psToken) (string, bool) {
	for i := len(operands) - 1; i >= 0; i-- {
		if operands[i].kind == psString {
			return decodePDFString(operands[i].raw), true
		}
	}
	return "", false
}

// arrayText concatenates the strings of a TJ operand array
func arrayText(operands []psToken) string {
	var b strings.Builder
	inArray := false
	for _, op := range operands {
		switch op.kind {
		case psArrayStart:
			inArray = true
		case psArrayEnd:
			inArray = false
		case psString:
			if inArray {
				b.WriteString(decodePDFString(op.raw))
			}
		case psNumber:
			if inArray && op.number < tjWordGap {
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}

// decodePDFString turns raw string bytes into text. UTF-16BE with a BOM and
// valid UTF-8 are kept, other 8-bit bytes are read as cp1251. Strings made of
// glyph ids (composite fonts) decode to nothing readable and are dropped.
func decodePDFString(raw []byte) string {
	if len(raw) >= 2 && raw[0] == 0xFE && raw[1] == 0xFF {
		if s, err := xunicode.UTF16(xunicode.BigEndian, xunicode.UseBOM).NewDecoder().Bytes(raw); err == nil {
			return string(s)
		}
	}
	if utf8.Valid(raw) {
		return keepReadable(string(raw))
	}
	if s, err := charmap.Windows1251.NewDecoder().Bytes(raw); err == nil {
		return keepReadable(string(s))
	}
	return ""
}

func keepReadable(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == ' ' || r == '\t' || isReadable(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

type psKind int

const (
	psOperator psKind = iota
	psNumber
	psString
	psName
	psArrayStart
	psArrayEnd
	psOther
)

type psToken struct {
	kind   psKind
	text   string
	raw    []byte
	number float64
}

// psLexer tokenizes the subset of PDF content-stream syntax needed for text
type psLexer struct {
	src []byte
	pos int
}

func (l *psLexer) next() (psToken, bool) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return psToken{}, false
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		return psToken{kind: psString, raw: l.literalString()}, true
	case c == '<' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '<':
		l.pos += 2
		return psToken{kind: psOther, text: "<<"}, true
	case c == '>' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>':
		l.pos += 2
		return psToken{kind: psOther, text: ">>"}, true
	case c == '<':
		return psToken{kind: psString, raw: l.hexString()}, true
	case c == '[':
		l.pos++
		return psToken{kind: psArrayStart}, true
	case c == ']':
		l.pos++
		return psToken{kind: psArrayEnd}, true
	case c == '/':
		start := l.pos
		l.pos++
		l.readRegular()
		return psToken{kind: psName, text: string(l.src[start:l.pos])}, true
	case c == '%':
		for l.pos < len(l.src) && l.src[l.pos] != '\n' && l.src[l.pos] != '\r' {
			l.pos++
		}
		return l.next()
	case c == '{' || c == '}' || c == ')' || c == '>':
		l.pos++
		return psToken{kind: psOther, text: string(c)}, true
	}

	start := l.pos
	l.readRegular()
	if l.pos == start {
		l.pos++
	}
	word := string(l.src[start:l.pos])
	if n, ok := parseNumber(word); ok {
		return psToken{kind: psNumber, text: word, number: n}, true
	}
	if word == "BI" {
		l.skipInlineImage()
	}
	return psToken{kind: psOperator, text: word}, true
}

func (l *psLexer) skipSpace() {
	for l.pos < len(l.src) && isPSSpace(l.src[l.pos]) {
		l.pos++
	}
}

func (l *psLexer) readRegular() {
	for l.pos < len(l.src) && !isPSSpace(l.src[l.pos]) && !isPSDelimiter(l.src[l.pos]) {
		l.pos++
	}
}

// skipInlineImage jumps past binary inline image data up to EI
func (l *psLexer) skipInlineImage() {
	idx := strings.Index(string(l.src[l.pos:]), " EI")
	if idx < 0 {
		l.pos = len(l.src)
		return
	}
	l.pos += idx + 3
}

func (l *psLexer) literalString() []byte {
	l.pos++ // (
	depth := 1
	var out []byte
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		l.pos++
		switch c {
		case '\\':
			if l.pos >= len(l.src) {
				return out
			}
			e := l.src[l.pos]
			l.pos++
			switch e {
			case 'n':
				out = append(out, '\n')
			case 'r':
				out = append(out, '\r')
			case 't':
				out = append(out, '\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for i := 0; i < 2 && l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '7'; i++ {
						v = v*8 + int(l.src[l.pos]-'0')
						l.pos++
					}
					out = append(out, byte(v))
				} else {
					out = append(out, e)
				}
			}
		case '(':
			depth++
			out = append(out, c)
		case ')':
			depth--
			if depth == 0 {
				return out
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

func (l *psLexer) hexString() []byte {
	l.pos++ // <
	var digits []byte
	for l.pos < len(l.src) && l.src[l.pos] != '>' {
		c := l.src[l.pos]
		if !isPSSpace(c) {
			digits = append(digits, c)
		}
		l.pos++
	}
	l.pos++ // >
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out, err := hex.DecodeString(string(digits))
	if err != nil {
		return nil
	}
	return out
}

func parseNumber(s string) (float64, bool) {
	if s == "" || !strings.ContainsAny(s[:1], "+-.0123456789") {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	return n, err == nil
}

func isPSSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == 0
}

func isPSDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}
