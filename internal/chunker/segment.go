package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// paragraphBreak matches two or more newlines, with any whitespace between them.
var paragraphBreak = regexp.MustCompile(`\n[^\S\n]*\n\s*`)

// Segment splits text on blank lines into trimmed, non-empty paragraphs.
//
// Offsets are accumulated from the untrimmed paragraph lengths and do not count
// the separators, so they drift from the true positions after each break. Line
// endings are normalized to \n first.
func Segment(text string) []Chunk {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []Chunk
	cursor := 0
	for _, part := range paragraphBreak.Split(text, -1) {
		start := cursor
		cursor += utf8.RuneCountInString(part)

		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, Chunk{Text: trimmed, Start: start, End: cursor})
	}
	return out
}
