package extract

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// destinations whose content is never document text
var rtfSkippedDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "object": true, "header": true, "footer": true,
	"headerl": true, "headerr": true, "footerl": true, "footerr": true,
	"themedata": true, "colorschememapping": true, "datastore": true,
	"latentstyles": true, "listtable": true, "listoverridetable": true,
	"rsidtbl": true, "generator": true, "xmlnstbl": true, "filetbl": true,
	"revtbl": true, "pgdsctbl": true, "fldinst": true,
}

// RTFExtractor strips RTF control words, decoding \'hh escapes with the
// document code page (cp1251 unless \ansicpg says otherwise) and \uN escapes.
type RTFExtractor struct{}

// NewRTFExtractor creates an RTF extractor
func NewRTFExtractor() RTFExtractor {
	return RTFExtractor{}
}

// ExtractText implements interfaces.TextExtractor
func (RTFExtractor) ExtractText(_ context.Context, data []byte) (string, error) {
	return rtfToText(string(data)), nil
}

type rtfGroup struct {
	skip     bool
	ucSkip   int
	firstTok bool
}

type rtfParser struct {
	src     string
	pos     int
	out     strings.Builder
	pending []byte // \'hh bytes awaiting code-page decoding
	codec   encoding.Encoding
	stack   []rtfGroup
	cur     rtfGroup
	skipN   int // fallback characters to drop after \uN
}

func rtfToText(src string) string {
	p := &rtfParser{
		src:   src,
		codec: charmap.Windows1251,
		cur:   rtfGroup{ucSkip: 1},
	}
	p.run()
	p.flushBytes()

	lines := strings.Split(p.out.String(), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func (p *rtfParser) run() {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch c {
		case '{':
			p.flushBytes()
			p.stack = append(p.stack, p.cur)
			p.cur.firstTok = true
			p.pos++
		case '}':
			p.flushBytes()
			if n := len(p.stack); n > 0 {
				p.cur = p.stack[n-1]
				p.stack = p.stack[:n-1]
			}
			p.pos++
		case '\\':
			p.control()
		case '\r', '\n':
			p.pos++
		default:
			p.cur.firstTok = false
			p.pos++
			if p.skipN > 0 {
				p.skipN--
				continue
			}
			p.flushBytes()
			p.emit(p.src[p.pos-1 : p.pos])
		}
	}
}

func (p *rtfParser) control() {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return
	}
	c := p.src[p.pos]
	first := p.cur.firstTok
	p.cur.firstTok = false

	switch {
	case c == '\\' || c == '{' || c == '}':
		p.pos++
		p.literal(p.src[p.pos-1 : p.pos])
		return
	case c == '\'':
		if p.pos+3 <= len(p.src) {
			if b, err := strconv.ParseUint(p.src[p.pos+1:p.pos+3], 16, 8); err == nil {
				p.pos += 3
				if p.skipN > 0 {
					p.skipN--
					return
				}
				if !p.cur.skip {
					p.pending = append(p.pending, byte(b))
				}
				return
			}
		}
		p.pos++
		return
	case c == '*':
		p.pos++
		if first {
			p.cur.skip = true
		}
		return
	case c == '~':
		p.pos++
		p.literal(" ")
		return
	case c == '-' || c == '_':
		p.pos++
		return
	case !isASCIILetter(c):
		p.pos++
		return
	}

	start := p.pos
	for p.pos < len(p.src) && isASCIILetter(p.src[p.pos]) {
		p.pos++
	}
	word := p.src[start:p.pos]

	numStart := p.pos
	if p.pos < len(p.src) && p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	param, hasParam := 0, false
	if p.pos > numStart {
		if n, err := strconv.Atoi(p.src[numStart:p.pos]); err == nil {
			param, hasParam = n, true
		}
	}
	// a single space delimits the control word
	if p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}

	if first && rtfSkippedDestinations[word] {
		p.cur.skip = true
		return
	}

	switch word {
	case "par", "line", "row", "sect", "page":
		p.literal("\n")
	case "tab":
		p.literal("\t")
	case "cell":
		p.literal(" | ")
	case "emdash":
		p.literal("—")
	case "endash":
		p.literal("–")
	case "lquote", "rquote":
		p.literal("'")
	case "ldblquote", "rdblquote":
		p.literal("\"")
	case "bullet":
		p.literal("•")
	case "uc":
		if hasParam {
			p.cur.ucSkip = param
		}
	case "u":
		if hasParam {
			if param < 0 {
				param += 65536
			}
			p.literal(string(rune(param)))
			p.skipN = p.cur.ucSkip
		}
	case "ansicpg":
		if hasParam {
			p.setCodePage(param)
		}
	}
}

func (p *rtfParser) setCodePage(cp int) {
	switch cp {
	case 1250:
		p.codec = charmap.Windows1250
	case 1251:
		p.codec = charmap.Windows1251
	case 1252:
		p.codec = charmap.Windows1252
	case 866:
		p.codec = charmap.CodePage866
	case 20866:
		p.codec = charmap.KOI8R
	}
}

func (p *rtfParser) literal(s string) {
	p.flushBytes()
	p.emit(s)
}

func (p *rtfParser) emit(s string) {
	if p.cur.skip {
		return
	}
	p.out.WriteString(s)
}

func (p *rtfParser) flushBytes() {
	if len(p.pending) == 0 {
		return
	}
	decoded, err := p.codec.NewDecoder().Bytes(p.pending)
	if err == nil {
		p.out.Write(decoded)
	}
	p.pending = p.pending[:0]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
