package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docclass/internal/config"
	"github.com/dgallion1/docclass/internal/inference"
	"github.com/dgallion1/docclass/internal/metrics"
	"github.com/dgallion1/docclass/internal/queue"
	"github.com/dgallion1/docclass/internal/store"
)

// Orchestrator accepts classification submissions and runs them on a pool
// of workers fed by the job queue.
type Orchestrator struct {
	jobs     *JobStore
	queue    queue.Queue
	store    Store
	provider inference.Provider
	labels   []string
	metrics  *metrics.Metrics
	log      *slog.Logger
	cfg      config.Config
	locks    *docLocks

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Deps are the collaborators an Orchestrator drives.
type Deps struct {
	Store    Store
	Queue    queue.Queue
	Provider inference.Provider
	Labels   []string
	Metrics  *metrics.Metrics
	Log      *slog.Logger
}

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{
		jobs:     NewJobStore(cfg.JobTTL),
		queue:    deps.Queue,
		store:    deps.Store,
		provider: deps.Provider,
		labels:   deps.Labels,
		metrics:  deps.Metrics,
		log:      deps.Log,
		cfg:      cfg,
		locks:    newDocLocks(),
	}
}

func (o *Orchestrator) newWorker() *Worker {
	return &Worker{
		store:                 o.store,
		provider:              o.provider,
		labels:                o.labels,
		jobs:                  o.jobs,
		locks:                 o.locks,
		metrics:               o.metrics,
		log:                   o.log,
		params:                o.chunkParams,
		maxConcurrentClassify: o.cfg.MaxConcurrentClassify,
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			err := o.queue.Consume(workerCtx, func(ctx context.Context, req queue.Request) {
				_ = w.Process(ctx, req)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				o.log.Error("worker stopped", "worker", i, "error", err)
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop stops accepting work and waits for in-flight jobs to finish.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	if err := o.queue.Close(); err != nil {
		o.log.Warn("close queue", "error", err)
	}
	o.wg.Wait()
}

// Submit validates a submission, marks the document Processing and queues
// it. Invalid parameters yield a *ValidationError with no side effects; an
// unknown document yields store.ErrNotFound. Everything after the enqueue
// is reported through the document status, never to the caller.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) (*Job, error) {
	req, err := o.normalize(sub)
	if err != nil {
		return nil, err
	}
	if _, err := o.store.GetDocument(ctx, req.DocumentID); err != nil {
		return nil, err
	}

	req.JobID = uuid.NewString()
	req.SubmittedAt = time.Now().UTC()

	if err := o.store.SetStatus(ctx, req.DocumentID, store.StatusProcessing); err != nil {
		return nil, fmt.Errorf("mark processing: %w", err)
	}

	job := newJob(req)
	o.jobs.Put(job)
	if err := o.queue.Enqueue(ctx, req); err != nil {
		o.metrics.QueueRejected()
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "queue_full")
		if mErr := o.store.MarkFailed(ctx, req.DocumentID); mErr != nil {
			o.log.Error("mark failed after enqueue error", "doc_id", req.DocumentID, "error", mErr)
		}
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	o.log.Info("job queued", "job_id", req.JobID, "doc_id", req.DocumentID, "model", req.Model,
		"strategy", req.Strategy, "chunk_size", req.ChunkSize, "overlap", req.Overlap)
	return job, nil
}

// ProcessNow validates and runs a submission synchronously on the calling
// goroutine, bypassing the queue.
func (o *Orchestrator) ProcessNow(ctx context.Context, sub Submission) (JobSnapshot, error) {
	req, err := o.normalize(sub)
	if err != nil {
		return JobSnapshot{}, err
	}
	req.JobID = uuid.NewString()
	req.SubmittedAt = time.Now().UTC()

	job := newJob(req)
	o.jobs.Put(job)
	err = o.newWorker().Process(ctx, req)
	return job.Snapshot(), err
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return o.queue.Depth()
}

// Labels returns the taxonomy every document is scored against.
func (o *Orchestrator) Labels() []string {
	return o.labels
}
