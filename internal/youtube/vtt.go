package youtube

import (
	"html"
	"regexp"
	"strings"
)

// VTT normalization: convert raw cue-based subtitle markup into
// deduplicated plain text. Rolling captions repeat the previous line
// verbatim while building up, so consecutive duplicates are suppressed.

var (
	// Two time codes separated by an arrow, e.g. 00:01:02.000 --> 00:01:04.500.
	timestampRe = regexp.MustCompile(`^(?:\d{2}:)?\d{2}:\d{2}\.\d{3}\s+-->\s+(?:\d{2}:)?\d{2}:\d{2}\.\d{3}`)
	cueIndexRe  = regexp.MustCompile(`^\d+$`)

	// Timed-text color-change tags (<c.colorE5E5E5>, </c>) and any other markup.
	colorTagRe = regexp.MustCompile(`</?c[^>]*>`)
	anyTagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

// CleanVTT converts raw VTT cue text into plain text. Normalizing text that
// is already plain returns it unchanged.
func CleanVTT(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	output := make([]string, 0, len(lines))

	inStyleOrNoteBlock := false
	lastLine := ""

	for _, rawLine := range lines {
		line := strings.TrimSpace(rawLine)

		if line == "" {
			inStyleOrNoteBlock = false
			continue
		}

		if line == "WEBVTT" || strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") {
			continue
		}

		if line == "STYLE" || line == "NOTE" {
			inStyleOrNoteBlock = true
			continue
		}
		if inStyleOrNoteBlock {
			continue
		}

		if timestampRe.MatchString(line) || cueIndexRe.MatchString(line) {
			continue
		}

		cleaned := normalizeCueText(line)
		if cleaned == "" {
			continue
		}
		if cleaned == lastLine {
			continue
		}
		lastLine = cleaned

		output = append(output, cleaned)
	}

	return strings.TrimSpace(strings.Join(output, "\n"))
}

// normalizeCueText strips embedded markup, decodes character entities, and
// collapses whitespace runs to single spaces.
func normalizeCueText(line string) string {
	s := colorTagRe.ReplaceAllString(line, "")
	s = anyTagRe.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	s = html.UnescapeString(s)
	s = spaceRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
