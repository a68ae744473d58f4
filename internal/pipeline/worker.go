package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dgallion1/docclass/internal/chunker"
	"github.com/dgallion1/docclass/internal/classify"
	"github.com/dgallion1/docclass/internal/inference"
	"github.com/dgallion1/docclass/internal/metrics"
	"github.com/dgallion1/docclass/internal/queue"
	"github.com/dgallion1/docclass/internal/store"
)

// Store is the persistence the pipeline needs.
type Store interface {
	GetDocument(ctx context.Context, id string) (*store.Document, error)
	SetStatus(ctx context.Context, id string, status store.Status) error
	BeginAttempt(ctx context.Context, docID string, sig store.Signature) error
	SaveRun(ctx context.Context, run *store.Run) error
	MarkFailed(ctx context.Context, id string) error
}

// Worker runs the classification pipeline for one request at a time.
type Worker struct {
	store    Store
	provider inference.Provider
	labels   []string
	jobs     *JobStore
	locks    *docLocks
	metrics  *metrics.Metrics
	log      *slog.Logger

	params                func(queue.Request) chunker.Params
	maxConcurrentClassify int
}

// Process runs chunking, classification and persistence for req. Every
// failure marks the document Failed and is returned for logging only; a
// document that no longer exists is skipped without error. The work is not
// cancelled by ctx once started.
func (w *Worker) Process(ctx context.Context, req queue.Request) (err error) {
	ctx = context.WithoutCancel(ctx)
	log := w.log.With("job_id", req.JobID, "doc_id", req.DocumentID, "model", req.Model)
	job := w.jobs.Ensure(req)
	start := time.Now()

	unlock := w.locks.lock(req.DocumentID)
	defer unlock()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			log.Error("classification panicked", "panic", p, "stack", string(debug.Stack()))
		}
		if err == nil {
			return
		}
		if errors.Is(err, store.ErrNotFound) {
			log.Info("document deleted during processing, skipping", "error", err)
			job.SetStatus(StatusSkipped, "not_found")
			err = nil
			return
		}
		w.fail(ctx, log, job, req, err)
		w.metrics.JobFinished(string(StatusFailed), time.Since(start))
	}()

	doc, err := w.store.GetDocument(ctx, req.DocumentID)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	sig := signature(req)
	if err := w.store.BeginAttempt(ctx, doc.ID, sig); err != nil {
		return fmt.Errorf("begin attempt: %w", err)
	}

	// Phase 1: Chunk
	job.SetStatus(StatusChunking, "chunking")
	counter := chunker.TokenCounterFunc(func(ctx context.Context, text string) (int, error) {
		return w.provider.CountTokens(ctx, req.Model, text)
	})
	chunks, err := chunker.Build(ctx, doc.Text, w.params(req), w.provider, counter)
	if err != nil {
		return fmt.Errorf("chunk: %w", err)
	}
	job.SetTotalChunks(len(chunks))
	log.Info("chunked document", "chunks", len(chunks))

	// Phase 2: Classify and aggregate
	job.SetStatus(StatusClassifying, "classifying")
	result, err := classify.Run(ctx, w.provider, chunks, classify.Options{
		Model:       req.Model,
		Labels:      w.labels,
		MultiLabel:  req.MultiLabel,
		Concurrency: w.maxConcurrentClassify,
		Progress:    job.IncrChunksClassified,
	})
	if err != nil {
		return err
	}
	w.metrics.ChunksClassified(req.Model, len(chunks))

	// Phase 3: Persist
	job.SetStatus(StatusSaving, "saving")
	run := newRun(doc.ID, sig, result)
	if err := w.store.SaveRun(ctx, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	job.SetStatus(StatusCompleted, "done")
	w.metrics.JobFinished(string(StatusCompleted), time.Since(start))
	log.Info("classification complete", "run_id", run.ID, "chunks", len(chunks), "duration", time.Since(start))
	return nil
}

func (w *Worker) fail(ctx context.Context, log *slog.Logger, job *Job, req queue.Request, cause error) {
	log.Error("classification failed", "strategy", req.Strategy, "chunk_size", req.ChunkSize,
		"overlap", req.Overlap, "multi_label", req.MultiLabel, "error", cause)
	job.AddError(cause.Error())
	job.SetStatus(StatusFailed, "failed")

	if err := w.store.MarkFailed(ctx, req.DocumentID); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("mark failed", "error", err)
	}
}

func newRun(docID string, sig store.Signature, res classify.Result) *store.Run {
	run := &store.Run{
		DocumentID: docID,
		Signature:  sig,
		Scores:     make([]store.LabelScore, len(res.Scores)),
		Chunks:     make([]store.RunChunk, len(res.Chunks)),
	}
	for i, s := range res.Scores {
		run.Scores[i] = store.LabelScore{Label: s.Label, Score: s.Score}
	}
	for i, c := range res.Chunks {
		run.Chunks[i] = store.RunChunk{
			Start:    c.Chunk.Start,
			End:      c.Chunk.End,
			Text:     c.Chunk.Text,
			TopLabel: c.TopLabel,
			TopScore: c.TopScore,
		}
	}
	return run
}

// docLocks serializes attempts on the same document within this process.
type docLocks struct {
	mu    sync.Mutex
	locks map[string]*docLock
}

type docLock struct {
	mu   sync.Mutex
	refs int
}

func newDocLocks() *docLocks {
	return &docLocks{locks: make(map[string]*docLock)}
}

func (d *docLocks) lock(id string) (unlock func()) {
	d.mu.Lock()
	l, ok := d.locks[id]
	if !ok {
		l = &docLock{}
		d.locks[id] = l
	}
	l.refs++
	d.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		d.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(d.locks, id)
		}
		d.mu.Unlock()
	}
}
