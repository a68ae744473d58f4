package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BeginAttempt marks the document Processing and removes any run that has
// the same signature, in one transaction.
func (s *Store) BeginAttempt(ctx context.Context, docID string, sig Signature) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`),
			string(StatusProcessing), time.Now().UTC(), docID)
		if err := affected(res, err, "document", docID); err != nil {
			return err
		}
		return s.deleteRuns(ctx, tx, docID, &sig)
	})
}

// SaveRun replaces the run with the same signature, writes its scores and
// chunks, and flips the document to Completed. Either all of it commits or
// none of it does. ID and CreatedAt are assigned when empty.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`),
			string(StatusCompleted), time.Now().UTC(), run.DocumentID)
		if err := affected(res, err, "document", run.DocumentID); err != nil {
			return err
		}
		if err := s.deleteRuns(ctx, tx, run.DocumentID, &run.Signature); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO classification_runs (id, document_id, model, strategy, chunk_size, overlap, multi_label, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
			run.ID, run.DocumentID, run.Model, run.Strategy, run.ChunkSize, run.Overlap, run.MultiLabel, run.CreatedAt); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for i, sc := range run.Scores {
			if _, err := tx.ExecContext(ctx, s.rebind(
				`INSERT INTO label_scores (run_id, position, label, score) VALUES (?, ?, ?, ?)`),
				run.ID, i, sc.Label, sc.Score); err != nil {
				return fmt.Errorf("insert score %q: %w", sc.Label, err)
			}
		}

		for i, c := range run.Chunks {
			if _, err := tx.ExecContext(ctx, s.rebind(
				`INSERT INTO run_chunks (run_id, seq, start_offset, end_offset, text, top_label, top_score)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`),
				run.ID, i, c.Start, c.End, c.Text, c.TopLabel, c.TopScore); err != nil {
				return fmt.Errorf("insert chunk %d: %w", i, err)
			}
		}
		return nil
	})
}

// ListRuns returns a document's runs, oldest first, with scores in label
// order and chunks in document order.
func (s *Store) ListRuns(ctx context.Context, docID string) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, document_id, model, strategy, chunk_size, overlap, multi_label, created_at
		 FROM classification_runs WHERE document_id = ? ORDER BY created_at, id`), docID)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.Model, &r.Strategy, &r.ChunkSize, &r.Overlap, &r.MultiLabel, &r.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	for i := range runs {
		if runs[i].Scores, err = s.runScores(ctx, runs[i].ID); err != nil {
			return nil, err
		}
		if runs[i].Chunks, err = s.runChunks(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *Store) runScores(ctx context.Context, runID string) ([]LabelScore, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT label, score FROM label_scores WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var out []LabelScore
	for rows.Next() {
		var sc LabelScore
		if err := rows.Scan(&sc.Label, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *Store) runChunks(ctx context.Context, runID string) ([]RunChunk, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT start_offset, end_offset, text, top_label, top_score FROM run_chunks WHERE run_id = ? ORDER BY seq`), runID)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var out []RunChunk
	for rows.Next() {
		var c RunChunk
		if err := rows.Scan(&c.Start, &c.End, &c.Text, &c.TopLabel, &c.TopScore); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// deleteRuns removes the document's runs, all of them when sig is nil.
// Child rows are deleted explicitly so the result does not depend on
// foreign key enforcement.
func (s *Store) deleteRuns(ctx context.Context, ex execer, docID string, sig *Signature) error {
	where := `document_id = ?`
	args := []any{docID}
	if sig != nil {
		where += ` AND model = ? AND strategy = ? AND chunk_size = ? AND overlap = ? AND multi_label = ?`
		args = append(args, sig.Model, sig.Strategy, sig.ChunkSize, sig.Overlap, sig.MultiLabel)
	}
	for _, q := range []string{
		`DELETE FROM label_scores WHERE run_id IN (SELECT id FROM classification_runs WHERE ` + where + `)`,
		`DELETE FROM run_chunks WHERE run_id IN (SELECT id FROM classification_runs WHERE ` + where + `)`,
		`DELETE FROM classification_runs WHERE ` + where,
	} {
		if _, err := ex.ExecContext(ctx, s.rebind(q), args...); err != nil {
			return fmt.Errorf("delete runs: %w", err)
		}
	}
	return nil
}
