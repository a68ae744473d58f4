package classify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dgallion1/docclass/internal/chunker"
	"github.com/dgallion1/docclass/internal/inference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var labels = []string{"Legal Document", "Academic Paper"}

// tableClassifier returns canned scores keyed by chunk text.
type tableClassifier struct {
	mu     sync.Mutex
	scores map[string][]inference.Score
	fail   map[string]error
	calls  []string
}

func (c *tableClassifier) Classify(_ context.Context, _, text string, _ []string, _ bool) ([]inference.Score, error) {
	c.mu.Lock()
	c.calls = append(c.calls, text)
	c.mu.Unlock()
	if err := c.fail[text]; err != nil {
		return nil, err
	}
	return c.scores[text], nil
}

func TestAggregator_WeightedMean(t *testing.T) {
	agg := NewAggregator(labels)
	require.NoError(t, agg.Add(chunker.Chunk{Text: "two words"}, []inference.Score{
		{Label: "Legal Document", Score: 0.4},
		{Label: "Academic Paper", Score: 0.6},
	}))
	require.NoError(t, agg.Add(chunker.Chunk{Text: "three more words"}, []inference.Score{
		{Label: "Academic Paper", Score: 0.1},
		{Label: "Legal Document", Score: 0.9},
	}))

	res := agg.Result()
	require.Len(t, res.Scores, 2)
	assert.Equal(t, "Legal Document", res.Scores[0].Label)
	assert.InDelta(t, (0.4*2+0.9*3)/5, res.Scores[0].Score, 1e-9)
	assert.InDelta(t, (0.6*2+0.1*3)/5, res.Scores[1].Score, 1e-9)

	require.Len(t, res.Chunks, 2)
	assert.Equal(t, "Academic Paper", res.Chunks[0].TopLabel)
	assert.Equal(t, 0.6, res.Chunks[0].TopScore)
	assert.Equal(t, "Legal Document", res.Chunks[1].TopLabel)
}

func TestAggregator_ScoresStayInUnitInterval(t *testing.T) {
	agg := NewAggregator(labels)
	for _, text := range []string{"a", "a b c d e f", "x y"} {
		require.NoError(t, agg.Add(chunker.Chunk{Text: text}, []inference.Score{
			{Label: "Legal Document", Score: 1},
			{Label: "Academic Paper", Score: 0},
		}))
	}
	for _, s := range agg.Result().Scores {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
}

func TestAggregator_MissingLabel(t *testing.T) {
	agg := NewAggregator(labels)
	err := agg.Add(chunker.Chunk{Text: "text"}, []inference.Score{{Label: "Legal Document", Score: 1}})
	assert.ErrorContains(t, err, `no score for label "Academic Paper"`)
}

func TestAggregator_NoChunks(t *testing.T) {
	res := NewAggregator(labels).Result()
	require.Len(t, res.Scores, 2)
	assert.Zero(t, res.Scores[0].Score)
	assert.Empty(t, res.Chunks)
}

func TestRun_PreservesChunkOrder(t *testing.T) {
	var chunks []chunker.Chunk
	cls := &tableClassifier{scores: map[string][]inference.Score{}}
	for i, word := range strings.Fields("alpha beta gamma delta epsilon") {
		chunks = append(chunks, chunker.Chunk{Text: word, Start: i * 10, End: i*10 + len(word)})
		cls.scores[word] = []inference.Score{
			{Label: "Legal Document", Score: 0.5},
			{Label: "Academic Paper", Score: 0.5},
		}
	}

	var progressed atomic.Int32
	res, err := Run(context.Background(), cls, chunks, Options{
		Model:       "m",
		Labels:      labels,
		Concurrency: 3,
		Progress:    func() { progressed.Add(1) },
	})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 5)
	for i := 1; i < len(res.Chunks); i++ {
		assert.Less(t, res.Chunks[i-1].Chunk.Start, res.Chunks[i].Chunk.Start)
	}
	assert.Equal(t, int32(5), progressed.Load())
}

func TestRun_FailureAbortsWithoutResult(t *testing.T) {
	boom := &inference.Error{Op: "classify", Model: "m", Err: errors.New("backend 500")}
	cls := &tableClassifier{
		scores: map[string][]inference.Score{
			"ok": {{Label: "Legal Document", Score: 1}, {Label: "Academic Paper", Score: 0}},
		},
		fail: map[string]error{"bad": boom},
	}
	chunks := []chunker.Chunk{{Text: "ok"}, {Text: "bad"}, {Text: "ok"}}

	res, err := Run(context.Background(), cls, chunks, Options{Model: "m", Labels: labels})
	require.ErrorIs(t, err, inference.ErrInference)
	assert.Empty(t, res.Scores)
	// Sequential by default: the third chunk is never attempted.
	assert.Equal(t, []string{"ok", "bad"}, cls.calls)
}

func TestRun_IncompleteScoresIsInferenceError(t *testing.T) {
	cls := &tableClassifier{scores: map[string][]inference.Score{
		"x": {{Label: "Legal Document", Score: 1}},
	}}
	_, err := Run(context.Background(), cls, []chunker.Chunk{{Text: "x"}}, Options{Labels: labels})
	assert.ErrorIs(t, err, inference.ErrInference)
}
