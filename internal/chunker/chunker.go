package chunker

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Chunk is a contiguous span of extracted document text.
type Chunk struct {
	Text  string `json:"text"`
	Start int    `json:"start"` // Character offset into the document text.
	End   int    `json:"end"`

	// TokenCount caches the tokenizer length of Text. Zero means not yet counted.
	TokenCount int `json:"token_count,omitempty"`
}

// Embedder returns one unit-length vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TokenCounter measures text length in model tokens.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// TokenCounterFunc adapts a function to TokenCounter.
type TokenCounterFunc func(ctx context.Context, text string) (int, error)

func (f TokenCounterFunc) CountTokens(ctx context.Context, text string) (int, error) {
	return f(ctx, text)
}

// Strategy selects how the document is cut before token bounding.
type Strategy string

const (
	// Paragraph segments on blank lines and merges similar neighbours.
	Paragraph Strategy = "paragraph"
	// FixedSize cuts word windows of ChunkSize advancing by ChunkSize-Overlap.
	FixedSize Strategy = "fixed"
)

const (
	DefaultMergeThreshold = 0.85
	DefaultMaxTokens      = 512
	DefaultWindowSize     = 200
	DefaultWindowOverlap  = 50
)

// ErrInvalidParams is wrapped by every Params validation failure.
var ErrInvalidParams = errors.New("invalid chunking parameters")

// ParseStrategy accepts the canonical names plus the legacy "Number" spelling.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "paragraph":
		return Paragraph, nil
	case "fixed", "fixed_size", "number":
		return FixedSize, nil
	}
	return "", fmt.Errorf("%w: unknown chunking strategy %q", ErrInvalidParams, s)
}

// Params configures Build.
type Params struct {
	Strategy  Strategy
	ChunkSize int // Words per window for FixedSize.
	Overlap   int // Words shared by consecutive windows for FixedSize.

	// MaxTokens bounds every emitted chunk. Zero selects DefaultMaxTokens.
	MaxTokens int
	// MergeThreshold is the cosine similarity a neighbour must exceed to merge.
	// Zero selects DefaultMergeThreshold.
	MergeThreshold float64
}

// Validate rejects parameter combinations that cannot produce chunks.
func (p Params) Validate() error {
	switch p.Strategy {
	case Paragraph:
	case FixedSize:
		if p.ChunkSize <= 0 {
			return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidParams, p.ChunkSize)
		}
		if p.Overlap < 0 {
			return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidParams, p.Overlap)
		}
		if p.ChunkSize <= p.Overlap {
			return fmt.Errorf("%w: chunk_size (%d) must be greater than overlap (%d)", ErrInvalidParams, p.ChunkSize, p.Overlap)
		}
	default:
		return fmt.Errorf("%w: unknown chunking strategy %q", ErrInvalidParams, p.Strategy)
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("%w: max tokens must not be negative, got %d", ErrInvalidParams, p.MaxTokens)
	}
	return nil
}

func (p Params) maxTokens() int {
	if p.MaxTokens <= 0 {
		return DefaultMaxTokens
	}
	return p.MaxTokens
}

func (p Params) mergeThreshold() float64 {
	if p.MergeThreshold <= 0 {
		return DefaultMergeThreshold
	}
	return p.MergeThreshold
}

// Build cuts text into token-bounded chunks ordered by Start.
// Paragraph: Segment, Merge, then SplitByToken on every merged chunk.
// FixedSize: Window, then SplitByToken on every window.
func Build(ctx context.Context, text string, p Params, emb Embedder, tc TokenCounter) ([]Chunk, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var base []Chunk
	switch p.Strategy {
	case FixedSize:
		base = Window(text, p.ChunkSize, p.Overlap)
	default:
		segments := Segment(text)
		merged, err := Merge(ctx, segments, p.mergeThreshold(), emb)
		if err != nil {
			return nil, err
		}
		base = merged
	}

	out := make([]Chunk, 0, len(base))
	for _, c := range base {
		parts, err := SplitByToken(ctx, c, p.maxTokens(), tc)
		if err != nil {
			return nil, err
		}
		out = append(out, parts...)
	}
	// Overlapping windows interleave once split.
	slices.SortStableFunc(out, func(a, b Chunk) int { return cmp.Compare(a.Start, b.Start) })
	return out, nil
}
