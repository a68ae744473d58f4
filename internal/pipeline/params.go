package pipeline

import (
	"errors"
	"fmt"

	"github.com/dgallion1/docclass/internal/chunker"
	"github.com/dgallion1/docclass/internal/queue"
	"github.com/dgallion1/docclass/internal/store"
)

// ValidationError rejects a submission before any work is queued.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid submission: %s: %v", e.Reason, e.Err)
	}
	return "invalid submission: " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Submission asks for one document to be classified. Zero values select the
// configured defaults.
type Submission struct {
	DocumentID string `json:"file_id"`
	Model      string `json:"model"`
	Strategy   string `json:"strategy"`
	ChunkSize  int    `json:"chunk_size"`
	Overlap    int    `json:"overlap"`
	MultiLabel bool   `json:"multi_label"`
}

// normalize resolves defaults and validates a submission. The returned
// request carries the canonical parameters that make up the run signature:
// for the paragraph strategy ChunkSize is the token budget and Overlap is 0.
func (o *Orchestrator) normalize(sub Submission) (queue.Request, error) {
	req := queue.Request{
		DocumentID: sub.DocumentID,
		Model:      sub.Model,
		MultiLabel: sub.MultiLabel,
	}
	if req.Model == "" {
		req.Model = o.cfg.DefaultModel
	}
	if !o.cfg.ModelAllowed(req.Model) {
		return queue.Request{}, &ValidationError{Reason: fmt.Sprintf("model %q is not allowed", req.Model)}
	}

	rawStrategy := sub.Strategy
	if rawStrategy == "" {
		rawStrategy = o.cfg.DefaultStrategy
	}
	strategy, err := chunker.ParseStrategy(rawStrategy)
	if err != nil {
		return queue.Request{}, &ValidationError{Reason: "strategy", Err: err}
	}
	req.Strategy = string(strategy)

	switch strategy {
	case chunker.FixedSize:
		req.ChunkSize, req.Overlap = sub.ChunkSize, sub.Overlap
		if req.ChunkSize == 0 && req.Overlap == 0 {
			req.ChunkSize, req.Overlap = o.cfg.DefaultChunkSize, o.cfg.DefaultChunkOverlap
		}
	default:
		if sub.ChunkSize < 0 {
			return queue.Request{}, &ValidationError{Reason: fmt.Sprintf("chunk_size must not be negative, got %d", sub.ChunkSize)}
		}
		req.ChunkSize = sub.ChunkSize
		if req.ChunkSize == 0 {
			req.ChunkSize = o.cfg.MaxTokens
		}
	}

	if err := o.chunkParams(req).Validate(); err != nil {
		return queue.Request{}, &ValidationError{Reason: "chunking parameters", Err: err}
	}
	return req, nil
}

// chunkParams maps a normalized request onto chunker parameters.
func (o *Orchestrator) chunkParams(req queue.Request) chunker.Params {
	p := chunker.Params{
		Strategy:       chunker.Strategy(req.Strategy),
		MaxTokens:      o.cfg.MaxTokens,
		MergeThreshold: o.cfg.MergeThreshold,
	}
	if p.Strategy == chunker.FixedSize {
		p.ChunkSize, p.Overlap = req.ChunkSize, req.Overlap
	} else {
		p.MaxTokens = req.ChunkSize
	}
	return p
}

func signature(req queue.Request) store.Signature {
	return store.Signature{
		Model:      req.Model,
		Strategy:   req.Strategy,
		ChunkSize:  req.ChunkSize,
		Overlap:    req.Overlap,
		MultiLabel: req.MultiLabel,
	}
}
