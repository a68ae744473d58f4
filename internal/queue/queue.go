package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned when a bounded queue cannot accept more work.
var ErrQueueFull = errors.New("job queue is full")

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("job queue is closed")

// Request is the immutable payload of one classification job.
type Request struct {
	JobID       string    `json:"job_id"`
	DocumentID  string    `json:"document_id"`
	Model       string    `json:"model"`
	Strategy    string    `json:"strategy"`
	ChunkSize   int       `json:"chunk_size"`
	Overlap     int       `json:"overlap"`
	MultiLabel  bool      `json:"multi_label"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Handler processes one request. It owns all failure handling; the queue
// acknowledges the delivery once Handler returns.
type Handler func(ctx context.Context, req Request)

// Queue decouples job submission from processing.
type Queue interface {
	Enqueue(ctx context.Context, req Request) error
	// Consume delivers requests to h until ctx is cancelled or the queue is
	// closed. It may be called from several goroutines.
	Consume(ctx context.Context, h Handler) error
	Depth() int
	Close() error
}
