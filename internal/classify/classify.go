package classify

import (
	"context"
	"fmt"

	"github.com/dgallion1/docclass/internal/chunker"
	"github.com/dgallion1/docclass/internal/inference"
	"golang.org/x/sync/errgroup"
)

// Classifier scores a single text against labels.
type Classifier interface {
	Classify(ctx context.Context, model, text string, labels []string, multiLabel bool) ([]inference.Score, error)
}

// Options configures Run.
type Options struct {
	Model      string
	Labels     []string
	MultiLabel bool
	// Concurrency bounds in-flight classify calls. Values below 1 mean 1.
	Concurrency int
	// Progress is called once per classified chunk, possibly concurrently.
	Progress func()
}

// Run classifies every chunk and aggregates the scores. Results are folded
// in chunk order regardless of completion order. The first failure cancels
// outstanding calls and is returned.
func Run(ctx context.Context, c Classifier, chunks []chunker.Chunk, opts Options) (Result, error) {
	scores := make([][]inference.Score, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Concurrency, 1))
	for i, ch := range chunks {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("classify chunk %d: panic: %v", i, p)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := c.Classify(gctx, opts.Model, ch.Text, opts.Labels, opts.MultiLabel)
			if err != nil {
				return fmt.Errorf("classify chunk %d: %w", i, err)
			}
			scores[i] = s
			if opts.Progress != nil {
				opts.Progress()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	agg := NewAggregator(opts.Labels)
	for i, ch := range chunks {
		if err := agg.Add(ch, scores[i]); err != nil {
			return Result{}, &inference.Error{Op: "classify", Model: opts.Model, Err: err}
		}
	}
	return agg.Result(), nil
}
