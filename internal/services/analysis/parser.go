package analysis

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ternarybob/dossier/internal/models"
)

// MissingVerdictRationale is recorded for artifacts the reply never mentioned
const MissingVerdictRationale = "Модель не вернула оценку для этого артефакта"

// segment is one per-artifact block cut from a reply
type segment struct {
	label string // artifact name as echoed by the model
	body  string
}

// segmenter cuts a reply into per-artifact blocks
type segmenter struct {
	name  string
	split func(reply string) []segment
}

// Segmenters in priority order; the first one yielding blocks wins
var segmenters = []segmenter{
	{name: "yaml-documents", split: splitByYAMLDocuments},
	{name: "artifact-delimiter", split: splitByDelimiter},
	{name: "emphasized-heading", split: splitByHeadings},
}

var (
	delimiterPattern     = regexp.MustCompile(`(?im)^[ \t*_#>\-•\d.)]*(?:АРТЕФАКТ|ARTIFACT)[ \t*_]*[:：]`)
	headingPattern       = regexp.MustCompile(`(?m)^[ \t]*(?:#{1,6}[ \t]+(.+?)|\*\*(.+?)\*\*[ \t]*:?)[ \t]*$`)
	labelPattern         = regexp.MustCompile(`(?i)^[\s*_#>\-•\d.)]*(СТАТУС|STATUS|ИСТОЧНИК|SOURCE|ОПИСАНИЕ|DESCRIPTION)[\s*_]*[:：][\s*_]*(.*)$`)
	separatorPattern     = regexp.MustCompile(`^\s*-{3,}\s*$`)
	separatorLinePattern = regexp.MustCompile(`(?m)^\s*-{3,}\s*$`)
	numberingPattern     = regexp.MustCompile(`^\d+[.)]\s*`)
)

// ParseReply turns a free-text reply into exactly one verdict per batch
// entry, in batch order, each named after its catalog entry. It returns the
// name of the segmenter that produced the blocks, or "loose-name-scan" when
// none did.
func ParseReply(reply string, batch []models.RequiredArtifact) ([]models.ArtifactVerdict, string) {
	if len(batch) == 0 {
		return nil, ""
	}

	var segments []segment
	strategy := "loose-name-scan"
	for _, s := range segmenters {
		if segments = s.split(reply); len(segments) > 0 {
			strategy = s.name
			break
		}
	}

	verdicts := make([]models.ArtifactVerdict, len(batch))
	assigned := make([]bool, len(batch))

	for i, seg := range alignSegments(segments, batch) {
		if seg == nil {
			continue
		}
		verdicts[i] = verdictFromSegment(*seg, batch[i].Name)
		assigned[i] = true
	}

	for i := range batch {
		if !assigned[i] {
			verdicts[i] = looseNameScan(reply, batch[i].Name)
		}
	}

	return verdicts, strategy
}

// splitByYAMLDocuments reads a reply that follows the requested block format
// exactly: each block is a flat mapping and blocks are separated by ---.
// Anything else (prose, decoration, colons inside values) yields nil.
func splitByYAMLDocuments(reply string) []segment {
	dec := yaml.NewDecoder(strings.NewReader(reply))
	var segments []segment
	for {
		var doc any
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil
		}
		if doc == nil {
			continue
		}

		fields, ok := doc.(map[string]any)
		if !ok {
			return nil
		}
		seg, ok := segmentFromMapping(fields)
		if !ok {
			return nil
		}
		segments = append(segments, seg)
	}
	return segments
}

func segmentFromMapping(fields map[string]any) (segment, bool) {
	var seg segment
	var body []string
	hasLabel := false

	for _, key := range []string{"АРТЕФАКТ", "ARTIFACT", "СТАТУС", "STATUS", "ИСТОЧНИК", "SOURCE", "ОПИСАНИЕ", "DESCRIPTION"} {
		for k, v := range fields {
			if !strings.EqualFold(strings.TrimSpace(k), key) {
				continue
			}
			value, ok := scalarString(v)
			if !ok {
				return segment{}, false
			}
			if key == "АРТЕФАКТ" || key == "ARTIFACT" {
				seg.label = cleanLabel(value)
				hasLabel = true
				continue
			}
			body = append(body, key+": "+value)
		}
	}

	if !hasLabel {
		return segment{}, false
	}
	seg.body = strings.Join(body, "\n")
	return seg, true
}

func scalarString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(val), true
	case int, int64, float64, bool:
		return fmt.Sprint(val), true
	default:
		return "", false
	}
}

func splitByDelimiter(reply string) []segment {
	locs := delimiterPattern.FindAllStringIndex(reply, -1)
	segments := make([]segment, 0, len(locs))
	for i, loc := range locs {
		end := len(reply)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := reply[loc[1]:end]
		label, body, _ := strings.Cut(block, "\n")
		segments = append(segments, segment{label: cleanLabel(label), body: body})
	}
	return segments
}

func splitByHeadings(reply string) []segment {
	type heading struct {
		label      string
		start, end int
	}

	var headings []heading
	for _, loc := range headingPattern.FindAllStringSubmatchIndex(reply, -1) {
		var label string
		switch {
		case loc[2] >= 0:
			label = reply[loc[2]:loc[3]]
		case loc[4] >= 0:
			label = reply[loc[4]:loc[5]]
		}
		// A bold field label such as **СТАТУС: НАЙДЕН** is not a heading
		if labelPattern.MatchString(label) || labelPattern.MatchString(label+":") {
			continue
		}
		headings = append(headings, heading{label: label, start: loc[0], end: loc[1]})
	}

	segments := make([]segment, 0, len(headings))
	for i, h := range headings {
		end := len(reply)
		if i+1 < len(headings) {
			end = headings[i+1].start
		}
		body := reply[h.end:end]
		if strings.TrimSpace(body) == "" {
			continue
		}
		segments = append(segments, segment{label: cleanLabel(h.label), body: body})
	}
	return segments
}

// alignSegments returns, per batch index, the segment evaluated for that
// artifact. A segment whose label is exactly a batch entry's name (after
// normalization) goes to that entry; every other segment fills the remaining
// slots by position.
func alignSegments(segments []segment, batch []models.RequiredArtifact) []*segment {
	aligned := make([]*segment, len(batch))
	var unnamed []int

	for si := range segments {
		idx := -1
		for bi, artifact := range batch {
			if aligned[bi] == nil && sameArtifact(segments[si].label, artifact.Name) {
				idx = bi
				break
			}
		}
		if idx < 0 {
			unnamed = append(unnamed, si)
			continue
		}
		aligned[idx] = &segments[si]
	}

	for _, si := range unnamed {
		slot := si
		if slot >= len(batch) || aligned[slot] != nil {
			slot = firstFree(aligned)
		}
		if slot < 0 {
			break
		}
		aligned[slot] = &segments[si]
	}

	return aligned
}

func firstFree(aligned []*segment) int {
	for i, s := range aligned {
		if s == nil {
			return i
		}
	}
	return -1
}

func verdictFromSegment(seg segment, name string) models.ArtifactVerdict {
	fields := scanLabels(seg.body)

	status, hasStatus := fields["status"]
	var verdictStatus models.VerdictStatus
	if hasStatus && strings.TrimSpace(status) != "" {
		verdictStatus = Classify(status)
	} else {
		verdictStatus = Classify(seg.body)
	}

	description := fields["description"]
	if description == "" && !hasStatus {
		description = strings.TrimSpace(cutAtSeparator(seg.body))
	}

	return models.ArtifactVerdict{
		Name:        name,
		Status:      verdictStatus,
		Source:      fields["source"],
		Description: description,
	}
}

// scanLabels collects status, source and description values. A value runs
// over following lines until the next label or a --- separator.
func scanLabels(body string) map[string]string {
	fields := make(map[string]string)
	var current string
	var buf []string

	flush := func() {
		if current != "" {
			if _, seen := fields[current]; !seen {
				fields[current] = strings.TrimSpace(strings.Join(buf, "\n"))
			}
		}
		current, buf = "", nil
	}

	for _, line := range strings.Split(body, "\n") {
		if separatorPattern.MatchString(line) {
			flush()
			continue
		}
		if m := labelPattern.FindStringSubmatch(line); m != nil {
			flush()
			current = canonicalLabel(m[1])
			buf = append(buf, trimDecoration(m[2]))
			continue
		}
		if current != "" {
			buf = append(buf, strings.TrimSpace(line))
		}
	}
	flush()

	return fields
}

func canonicalLabel(label string) string {
	switch strings.ToUpper(label) {
	case "СТАТУС", "STATUS":
		return "status"
	case "ИСТОЧНИК", "SOURCE":
		return "source"
	default:
		return "description"
	}
}

// looseNameScan looks for the artifact name anywhere in the reply and
// classifies the line it appears on.
func looseNameScan(reply, name string) models.ArtifactVerdict {
	verdict := models.ArtifactVerdict{
		Name:        name,
		Status:      models.StatusNotFound,
		Description: MissingVerdictRationale,
	}

	needle := normalizeName(name)
	if needle == "" {
		return verdict
	}

	lines := strings.Split(reply, "\n")
	for i, line := range lines {
		if !strings.Contains(normalizeName(line), needle) {
			continue
		}
		window := line
		if i+1 < len(lines) {
			window += "\n" + lines[i+1]
		}
		verdict.Status = Classify(window)
		verdict.Description = strings.TrimSpace(window)
		return verdict
	}
	return verdict
}

func sameArtifact(label, name string) bool {
	a := normalizeName(label)
	return a != "" && a == normalizeName(name)
}

// normalizeName lowercases and keeps only letters and digits separated by
// single spaces
func normalizeName(s string) string {
	var sb strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteRune(r)
			space = false
			continue
		}
		space = true
	}
	return sb.String()
}

func cleanLabel(label string) string {
	label = trimDecoration(label)
	label = numberingPattern.ReplaceAllString(label, "")
	return strings.Trim(label, " \t\"'«»<>")
}

func trimDecoration(s string) string {
	return strings.Trim(strings.TrimSpace(s), "*_#` \t")
}

func cutAtSeparator(body string) string {
	if loc := separatorLinePattern.FindStringIndex(body); loc != nil {
		return body[:loc[0]]
	}
	return body
}
