// Package store persists documents and their classification runs in a
// relational database (SQLite or PostgreSQL).
package store

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document or run does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a document with the same filename exists.
	ErrConflict = errors.New("conflict")
)

// Status is the processing state of a document.
type Status string

const (
	StatusProcessing Status = "Processing"
	StatusCompleted  Status = "Completed"
	StatusFailed     Status = "Failed"
)

// Document is an uploaded file and its extracted text.
type Document struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Text      string    `json:"-"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Signature identifies a run. A document holds at most one run per signature.
type Signature struct {
	Model      string `json:"model"`
	Strategy   string `json:"chunking_strategy"`
	ChunkSize  int    `json:"chunk_size"`
	Overlap    int    `json:"overlap"`
	MultiLabel bool   `json:"multi_label"`
}

// Run is one completed classification of a document.
type Run struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Signature
	CreatedAt time.Time    `json:"created_at"`
	Scores    []LabelScore `json:"scores"`
	Chunks    []RunChunk   `json:"chunks"`
}

// LabelScore is the document-level score of one label within a run.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// RunChunk is a classified chunk within a run.
type RunChunk struct {
	Start    int     `json:"start"`
	End      int     `json:"end"`
	Text     string  `json:"text"`
	TopLabel string  `json:"top_label"`
	TopScore float64 `json:"top_score"`
}
