package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docclass/internal/export"
	"github.com/dgallion1/docclass/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type fileEntry struct {
	store.Document
	Runs []store.Run `json:"runs"`
}

// handleListFiles lists every document with all of its runs.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		s.log.Error("list documents", "error", err)
		jsonError(w, "failed to list files", http.StatusInternalServerError)
		return
	}

	files := make([]fileEntry, 0, len(docs))
	for _, d := range docs {
		runs, err := s.store.ListRuns(ctx, d.ID)
		if err != nil {
			s.log.Error("list runs", "doc_id", d.ID, "error", err)
			jsonError(w, "failed to list files", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []store.Run{}
		}
		files = append(files, fileEntry{Document: d, Runs: runs})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files":  files,
		"labels": s.orchestrator.Labels(),
	})
}

func (s *Server) handleFileStatus(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": doc.Status})
}

// handleDeleteFile deletes a document and all of its runs.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileID")
	err := s.store.DeleteDocument(r.Context(), fileID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "file not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.Error("delete document", "doc_id", fileID, "error", err)
		jsonError(w, "failed to delete file", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": fileID})
}

// handleExportFile returns the document's runs as an XLSX workbook.
func (s *Server) handleExportFile(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	runs, err := s.store.ListRuns(r.Context(), doc.ID)
	if err != nil {
		s.log.Error("list runs", "doc_id", doc.ID, "error", err)
		jsonError(w, "failed to load runs", http.StatusInternalServerError)
		return
	}
	data, err := export.RunsXLSX(doc, runs)
	if err != nil {
		s.log.Error("export runs", "doc_id", doc.ID, "error", err)
		jsonError(w, "failed to build export", http.StatusInternalServerError)
		return
	}

	name := strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename)) + "-classification.xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*store.Document, bool) {
	fileID := chi.URLParam(r, "fileID")
	doc, err := s.store.GetDocument(r.Context(), fileID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "file not found", http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		s.log.Error("get document", "doc_id", fileID, "error", err)
		jsonError(w, "failed to load file", http.StatusInternalServerError)
		return nil, false
	}
	return doc, true
}
