package chunker

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	sentenceEnd = regexp.MustCompile(`[.!?]\s+`)
	wordRe      = regexp.MustCompile(`\S+`)
)

// span is a byte range within the parent chunk text.
type span struct {
	start, end int
}

// SplitByToken returns c unchanged (with TokenCount set) when it fits in
// maxTokens. Otherwise sentences are packed greedily; a sentence that alone
// exceeds the budget is packed by words, and a single word over the budget is
// emitted on its own. Every returned chunk carries its TokenCount, and offsets
// are the parent's Start plus the piece's position within the parent text.
func SplitByToken(ctx context.Context, c Chunk, maxTokens int, tc TokenCounter) ([]Chunk, error) {
	n, err := tc.CountTokens(ctx, c.Text)
	if err != nil {
		return nil, err
	}
	if n <= maxTokens {
		c.TokenCount = n
		return []Chunk{c}, nil
	}

	s := &splitter{ctx: ctx, parent: c, max: maxTokens, tc: tc}
	return s.pack(sentenceSpans(c.Text), true)
}

type splitter struct {
	ctx    context.Context
	parent Chunk
	max    int
	tc     TokenCounter
}

func (s *splitter) count(sp span) (int, error) {
	return s.tc.CountTokens(s.ctx, s.parent.Text[sp.start:sp.end])
}

// pack greedily accumulates consecutive units while the joined span stays
// within budget. Units are sentences when bySentence is set, words otherwise.
func (s *splitter) pack(units []span, bySentence bool) ([]Chunk, error) {
	var (
		out       []Chunk
		acc       span
		accTokens int
		have      bool
	)
	flush := func() {
		if have {
			out = append(out, s.piece(acc, accTokens))
			have = false
		}
	}

	for _, u := range units {
		n, err := s.count(u)
		if err != nil {
			return nil, err
		}

		if n > s.max {
			flush()
			if !bySentence {
				out = append(out, s.piece(u, n))
				continue
			}
			words, err := s.pack(wordSpans(s.parent.Text, u), false)
			if err != nil {
				return nil, err
			}
			out = append(out, words...)
			continue
		}

		if !have {
			acc, accTokens, have = u, n, true
			continue
		}

		joined := span{start: acc.start, end: u.end}
		jn, err := s.count(joined)
		if err != nil {
			return nil, err
		}
		if jn > s.max {
			flush()
			acc, accTokens, have = u, n, true
			continue
		}
		acc, accTokens = joined, jn
	}
	flush()
	return out, nil
}

func (s *splitter) piece(sp span, tokens int) Chunk {
	text := s.parent.Text
	start := s.parent.Start + utf8.RuneCountInString(text[:sp.start])
	end := start + utf8.RuneCountInString(text[sp.start:sp.end])
	if end > s.parent.End {
		end = s.parent.End
	}
	if start > end {
		start = end
	}
	return Chunk{
		Text:       text[sp.start:sp.end],
		Start:      start,
		End:        end,
		TokenCount: tokens,
	}
}

// sentenceSpans splits at whitespace that follows '.', '!' or '?'.
func sentenceSpans(text string) []span {
	end := len(strings.TrimRightFunc(text, unicode.IsSpace))
	prev := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))

	var out []span
	for _, m := range sentenceEnd.FindAllStringIndex(text[:end], -1) {
		if m[0]+1 > prev {
			out = append(out, span{start: prev, end: m[0] + 1})
		}
		prev = m[1]
	}
	if prev < end {
		out = append(out, span{start: prev, end: end})
	}
	return out
}

// wordSpans returns whitespace-delimited words inside within.
func wordSpans(text string, within span) []span {
	var out []span
	for _, m := range wordRe.FindAllStringIndex(text[within.start:within.end], -1) {
		out = append(out, span{start: within.start + m[0], end: within.start + m[1]})
	}
	return out
}
