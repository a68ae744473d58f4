package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateDocument inserts a new document in Processing state. A duplicate
// filename yields ErrConflict.
func (s *Store) CreateDocument(ctx context.Context, filename, text string) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:        uuid.NewString(),
		Filename:  filename,
		Text:      text,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO documents (id, filename, content, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`),
		doc.ID, doc.Filename, doc.Text, string(doc.Status), doc.CreatedAt, doc.UpdatedAt)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("document %q: %w", filename, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// ReplaceDocument swaps in new text, drops every run and resets the status
// to Processing.
func (s *Store) ReplaceDocument(ctx context.Context, id, text string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE documents SET content = ?, status = ?, updated_at = ? WHERE id = ?`),
			text, string(StatusProcessing), time.Now().UTC(), id)
		if err := affected(res, err, "document", id); err != nil {
			return err
		}
		return s.deleteRuns(ctx, tx, id, nil)
	})
}

// GetDocument returns a document including its text.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, filename, content, status, created_at, updated_at FROM documents WHERE id = ?`), id), id)
}

// FindDocumentByFilename looks a document up by its unique filename.
func (s *Store) FindDocumentByFilename(ctx context.Context, filename string) (*Document, error) {
	return s.scanDocument(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, filename, content, status, created_at, updated_at FROM documents WHERE filename = ?`), filename), filename)
}

func (s *Store) scanDocument(row *sql.Row, key string) (*Document, error) {
	var d Document
	var status string
	err := row.Scan(&d.ID, &d.Filename, &d.Text, &status, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	d.Status = Status(status)
	return &d, nil
}

// ListDocuments returns all documents, oldest first, without their text.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, status, created_at, updated_at FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var status string
		if err := rows.Scan(&d.ID, &d.Filename, &status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		d.Status = Status(status)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes a document and all of its runs.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.deleteRuns(ctx, tx, id, nil); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM documents WHERE id = ?`), id)
		return affected(res, err, "document", id)
	})
}

// SetStatus updates a document's status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`),
		string(status), time.Now().UTC(), id)
	return affected(res, err, "document", id)
}

// MarkFailed sets the document status to Failed.
func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.SetStatus(ctx, id, StatusFailed)
}

// affected converts a zero-row update into ErrNotFound.
func affected(res sql.Result, err error, kind, id string) error {
	if err != nil {
		return fmt.Errorf("update %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}
