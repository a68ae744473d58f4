// Package inference talks to the zero-shot classification and embedding
// backend and owns per-model tokenizers.
package inference

import (
	"context"
	"errors"
	"fmt"
)

// Score is one label's confidence for a text.
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Provider is everything the pipeline needs from a model backend.
type Provider interface {
	// Classify scores text against every label, sorted by score descending.
	// With multiLabel the scores are independent; otherwise they sum to ~1.
	Classify(ctx context.Context, model, text string, labels []string, multiLabel bool) ([]Score, error)
	// Embed returns one unit-length vector per text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// CountTokens returns the length of text under model's tokenizer.
	CountTokens(ctx context.Context, model, text string) (int, error)
}

// ErrInference matches every *Error via errors.Is.
var ErrInference = errors.New("inference failed")

// Error wraps a backend failure with the operation and model involved.
type Error struct {
	Op    string // "classify", "embed" or "tokenize"
	Model string
	Err   error
}

func (e *Error) Error() string {
	if e.Model == "" {
		return fmt.Sprintf("inference %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("inference %s (%s): %v", e.Op, e.Model, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrInference }

func wrap(op, model string, err error) error {
	if err == nil {
		return nil
	}
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return &Error{Op: op, Model: model, Err: err}
}
