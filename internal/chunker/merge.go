package chunker

import (
	"context"
	"fmt"
	"math"
)

// Merge folds adjacent chunks whose embedding is close to the running centroid
// of the current group. A candidate joins only when dot(centroid, candidate)
// is strictly greater than threshold. Merged text is joined with "\n", End is
// extended and the centroid becomes the renormalized sum. All texts are embedded
// in one call before the single left-to-right pass.
func Merge(ctx context.Context, chunks []Chunk, threshold float64, emb Embedder) ([]Chunk, error) {
	if len(chunks) < 2 {
		return chunks, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vecs), len(chunks))
	}

	out := make([]Chunk, 0, len(chunks))
	cur := chunks[0]
	centroid := widen(vecs[0])
	for i := 1; i < len(chunks); i++ {
		if len(vecs[i]) != len(centroid) {
			return nil, fmt.Errorf("embed chunks: vector %d has dimension %d, want %d", i, len(vecs[i]), len(centroid))
		}
		if Dot(centroid, vecs[i]) > threshold {
			cur.Text += "\n" + chunks[i].Text
			cur.End = chunks[i].End
			cur.TokenCount = 0
			for j, v := range vecs[i] {
				centroid[j] += float64(v)
			}
			Normalize(centroid)
			continue
		}
		out = append(out, cur)
		cur = chunks[i]
		centroid = widen(vecs[i])
	}
	return append(out, cur), nil
}

// Dot returns the inner product of a float64 accumulator and an embedding.
func Dot(a []float64, b []float32) float64 {
	var sum float64
	for i := range min(len(a), len(b)) {
		sum += a[i] * float64(b[i])
	}
	return sum
}

// Normalize scales v to unit length in place. A zero vector is left unchanged.
func Normalize(v []float64) {
	var sq float64
	for _, x := range v {
		sq += x * x
	}
	if sq == 0 {
		return
	}
	n := math.Sqrt(sq)
	for i := range v {
		v[i] /= n
	}
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
