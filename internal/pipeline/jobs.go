package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/docclass/internal/queue"
)

// JobStatus is the in-memory progress state of one submission. The durable
// outcome lives on the document row.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusChunking    JobStatus = "chunking"
	StatusClassifying JobStatus = "classifying"
	StatusSaving      JobStatus = "saving"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusSkipped     JobStatus = "skipped"
)

// Job tracks the progress of a single classification submission.
type Job struct {
	mu sync.Mutex

	ID         string `json:"job_id"`
	DocID      string `json:"doc_id"`
	Model      string `json:"model"`
	Strategy   string `json:"strategy"`
	ChunkSize  int    `json:"chunk_size"`
	Overlap    int    `json:"overlap"`
	MultiLabel bool   `json:"multi_label"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalChunks      int      `json:"total_chunks"`
	ChunksClassified int      `json:"chunks_classified"`
	Errors           []string `json:"errors"`
}

func newJob(req queue.Request) *Job {
	now := time.Now()
	return &Job{
		ID:         req.JobID,
		DocID:      req.DocumentID,
		Model:      req.Model,
		Strategy:   req.Strategy,
		ChunkSize:  req.ChunkSize,
		Overlap:    req.Overlap,
		MultiLabel: req.MultiLabel,
		Status:     StatusQueued,
		Phase:      "queued",
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Ensure returns the job for req, registering it when this process did not
// accept the submission (a shared queue delivered it from elsewhere).
func (s *JobStore) Ensure(req queue.Request) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[req.JobID]; ok {
		return job
	}
	job := newJob(req)
	s.jobs[job.ID] = job
	return job
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// IncrChunksClassified atomically increments chunks classified.
func (j *Job) IncrChunksClassified() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.ChunksClassified++
	j.UpdatedAt = time.Now()
}

// SetTotalChunks records total chunk count.
func (j *Job) SetTotalChunks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalChunks = n
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID         string    `json:"job_id"`
	DocID      string    `json:"doc_id"`
	Model      string    `json:"model"`
	Strategy   string    `json:"strategy"`
	ChunkSize  int       `json:"chunk_size"`
	Overlap    int       `json:"overlap"`
	MultiLabel bool      `json:"multi_label"`
	Status     JobStatus `json:"status"`
	Phase      string    `json:"phase"`
	Progress   Progress  `json:"progress"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := make([]string, len(j.Progress.Errors))
	copy(errs, j.Progress.Errors)
	return JobSnapshot{
		ID:         j.ID,
		DocID:      j.DocID,
		Model:      j.Model,
		Strategy:   j.Strategy,
		ChunkSize:  j.ChunkSize,
		Overlap:    j.Overlap,
		MultiLabel: j.MultiLabel,
		Status:     j.Status,
		Phase:      j.Phase,
		Progress: Progress{
			TotalChunks:      j.Progress.TotalChunks,
			ChunksClassified: j.Progress.ChunksClassified,
			Errors:           errs,
		},
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
