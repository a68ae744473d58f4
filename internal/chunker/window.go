package chunker

import (
	"unicode/utf8"
)

// Window cuts text into windows of size words, each starting size-overlap
// words after the previous one. The last window ends at the last word. Chunk
// text is the source slice from the first to the last word of the window.
// Callers validate size > overlap >= 0.
func Window(text string, size, overlap int) []Chunk {
	words := wordRe.FindAllStringIndex(text, -1)
	if len(words) == 0 || size <= 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}

	// Rune offsets of every word boundary, computed in one pass.
	runeAt := make(map[int]int, 2*len(words))
	pos, runes := 0, 0
	mark := func(b int) {
		runes += utf8.RuneCountInString(text[pos:b])
		pos = b
		runeAt[b] = runes
	}
	for _, w := range words {
		mark(w[0])
		mark(w[1])
	}

	var out []Chunk
	for first := 0; first < len(words); first += step {
		last := min(first+size, len(words)) - 1
		from, to := words[first][0], words[last][1]
		out = append(out, Chunk{
			Text:  text[from:to],
			Start: runeAt[from],
			End:   runeAt[to],
		})
		if last == len(words)-1 {
			break
		}
	}
	return out
}
