package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docclass/internal/parser"
	"github.com/dgallion1/docclass/internal/pipeline"
	"github.com/dgallion1/docclass/internal/store"
)

// handleUpload stores an uploaded file's text and queues it for
// classification with the default parameters. An existing filename is a
// conflict unless override=true, which replaces the text and drops its runs.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	text, err := parser.Extract(data, filename, parser.Options{PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext})
	if errors.Is(err, parser.ErrUnsupportedFormat) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.log.Warn("text extraction failed", "filename", filename, "error", err)
		jsonError(w, "failed to extract text: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	ctx := r.Context()
	override := r.URL.Query().Get("override") == "true" || r.FormValue("override") == "true"

	var docID string
	existing, err := s.store.FindDocumentByFilename(ctx, filename)
	switch {
	case err == nil && !override:
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":   fmt.Sprintf("file %q already exists", filename),
			"file_id": existing.ID,
		})
		return
	case err == nil:
		if err := s.store.ReplaceDocument(ctx, existing.ID, text); err != nil {
			s.log.Error("replace document", "doc_id", existing.ID, "error", err)
			jsonError(w, "failed to store document", http.StatusInternalServerError)
			return
		}
		docID = existing.ID
	case errors.Is(err, store.ErrNotFound):
		doc, err := s.store.CreateDocument(ctx, filename, text)
		if errors.Is(err, store.ErrConflict) {
			jsonError(w, fmt.Sprintf("file %q already exists", filename), http.StatusConflict)
			return
		}
		if err != nil {
			s.log.Error("create document", "filename", filename, "error", err)
			jsonError(w, "failed to store document", http.StatusInternalServerError)
			return
		}
		docID = doc.ID
	default:
		s.log.Error("find document", "filename", filename, "error", err)
		jsonError(w, "failed to look up document", http.StatusInternalServerError)
		return
	}

	job, err := s.orchestrator.Submit(ctx, pipeline.Submission{DocumentID: docID})
	if err != nil {
		s.log.Error("submit uploaded document", "doc_id", docID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":   err.Error(),
			"file_id": docID,
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"file_id":  docID,
		"filename": filename,
		"job_id":   job.ID,
		"status":   store.StatusProcessing,
		"poll_url": fmt.Sprintf("/jobs/%s", job.ID),
		"message":  "File uploaded successfully!",
	})
}

// handleProcess re-runs classification of a stored document with explicit
// parameters.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var sub pipeline.Submission
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&sub); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	sub.DocumentID = strings.TrimSpace(sub.DocumentID)
	if sub.DocumentID == "" {
		jsonError(w, "file_id is required", http.StatusBadRequest)
		return
	}

	job, err := s.orchestrator.Submit(r.Context(), sub)
	switch {
	case err == nil:
	case pipeline.IsValidation(err):
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrNotFound):
		jsonError(w, "file not found", http.StatusNotFound)
		return
	default:
		s.log.Error("submit document", "doc_id", sub.DocumentID, "error", err)
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot()
	writeJSON(w, http.StatusAccepted, map[string]any{
		"file_id":  snap.DocID,
		"job_id":   snap.ID,
		"status":   store.StatusProcessing,
		"params":   snap,
		"poll_url": fmt.Sprintf("/jobs/%s", snap.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
