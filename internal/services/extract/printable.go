package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
	xunicode "golang.org/x/text/encoding/unicode"
)

const minRunLength = 4

// printableText recovers readable runs from a legacy binary office file.
// Such files store text either as UTF-16LE or as 8-bit cp1251; the decoding
// that yields more readable text wins.
func printableText(data []byte) string {
	var candidates []string

	if utf16, err := xunicode.UTF16(xunicode.LittleEndian, xunicode.IgnoreBOM).NewDecoder().Bytes(evenLength(data)); err == nil {
		candidates = append(candidates, printableRuns(string(utf16)))
	}
	if cp, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
		candidates = append(candidates, printableRuns(string(cp)))
	}

	best := ""
	for _, c := range candidates {
		if letterCount(c) > letterCount(best) {
			best = c
		}
	}
	return best
}

func evenLength(data []byte) []byte {
	if len(data)%2 == 1 {
		return data[:len(data)-1]
	}
	return data
}

// printableRuns keeps runs of at least minRunLength printable characters
// that contain a letter, one run per line
func printableRuns(s string) string {
	var out strings.Builder
	var run []rune

	flush := func() {
		text := strings.TrimSpace(string(run))
		if len([]rune(text)) >= minRunLength && letterCount(text) > 0 {
			out.WriteString(text)
			out.WriteByte('\n')
		}
		run = run[:0]
	}

	for _, r := range s {
		if r == '\r' || r == '\n' {
			flush()
			continue
		}
		if r == '\t' || isReadable(r) {
			run = append(run, r)
			continue
		}
		flush()
	}
	flush()

	return out.String()
}

// letterCount counts Latin and Cyrillic letters only, so misdecoded bytes
// that land in other scripts do not count as text
func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) && unicode.In(r, unicode.Latin, unicode.Cyrillic) {
			n++
		}
	}
	return n
}

func isReadable(r rune) bool {
	switch {
	case r < 0x80:
		return unicode.IsPrint(r)
	case unicode.In(r, unicode.Latin, unicode.Cyrillic):
		return true
	case r >= 0x2010 && r <= 0x205E: // general punctuation
		return true
	case r == '№' || r == '«' || r == '»' || r == '\u00a0':
		return true
	}
	return false
}
