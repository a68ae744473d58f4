// Package classify scores chunks against the taxonomy and folds the per-chunk
// scores into one document-level score per label.
package classify

import (
	"fmt"

	"github.com/dgallion1/docclass/internal/chunker"
	"github.com/dgallion1/docclass/internal/inference"
)

// LabelScore is a document-level score for one taxonomy label.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ChunkResult is one chunk with its highest-scoring label.
type ChunkResult struct {
	Chunk    chunker.Chunk `json:"chunk"`
	TopLabel string        `json:"top_label"`
	TopScore float64       `json:"top_score"`
}

// Result is the outcome of classifying every chunk of a document.
type Result struct {
	Scores []LabelScore  `json:"scores"` // One per taxonomy label, in taxonomy order.
	Chunks []ChunkResult `json:"chunks"`
}

// Aggregator accumulates per-chunk scores. The document score of a label is
// the mean of its chunk scores weighted by each chunk's word count.
type Aggregator struct {
	labels   []string
	weighted map[string]float64 // sum of score*weight
	weight   float64            // sum of weight
	chunks   []ChunkResult
}

func NewAggregator(labels []string) *Aggregator {
	return &Aggregator{
		labels:   labels,
		weighted: make(map[string]float64, len(labels)),
	}
}

// Add records one chunk's scores. Every taxonomy label must be scored.
func (a *Aggregator) Add(c chunker.Chunk, scores []inference.Score) error {
	if len(scores) == 0 {
		return fmt.Errorf("chunk at %d: no scores returned", c.Start)
	}

	byLabel := make(map[string]float64, len(scores))
	top := scores[0]
	for _, s := range scores {
		byLabel[s.Label] = s.Score
		if s.Score > top.Score {
			top = s
		}
	}
	for _, l := range a.labels {
		if _, ok := byLabel[l]; !ok {
			return fmt.Errorf("chunk at %d: no score for label %q", c.Start, l)
		}
	}

	w := float64(chunker.WordCount(c.Text))
	for _, l := range a.labels {
		a.weighted[l] += byLabel[l] * w
	}
	a.weight += w
	a.chunks = append(a.chunks, ChunkResult{Chunk: c, TopLabel: top.Label, TopScore: top.Score})
	return nil
}

// Result returns the weighted mean for every label. Labels score 0 when no
// chunk carried any words.
func (a *Aggregator) Result() Result {
	scores := make([]LabelScore, len(a.labels))
	for i, l := range a.labels {
		scores[i] = LabelScore{Label: l}
		if a.weight > 0 {
			scores[i].Score = a.weighted[l] / a.weight
		}
	}
	return Result{Scores: scores, Chunks: a.chunks}
}
