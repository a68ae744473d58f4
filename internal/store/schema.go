package store

import (
	"context"
	"fmt"
)

// schema is formatted with the dialect's timestamp and float column types.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	filename    TEXT NOT NULL UNIQUE,
	content     TEXT NOT NULL,
	status      TEXT NOT NULL,
	created_at  %[1]s NOT NULL,
	updated_at  %[1]s NOT NULL
);

CREATE TABLE IF NOT EXISTS classification_runs (
	id           TEXT PRIMARY KEY,
	document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	model        TEXT NOT NULL,
	strategy     TEXT NOT NULL,
	chunk_size   INTEGER NOT NULL,
	overlap      INTEGER NOT NULL,
	multi_label  BOOLEAN NOT NULL,
	created_at   %[1]s NOT NULL,
	UNIQUE (document_id, model, strategy, chunk_size, overlap, multi_label)
);

CREATE INDEX IF NOT EXISTS idx_runs_document ON classification_runs(document_id);

CREATE TABLE IF NOT EXISTS label_scores (
	run_id    TEXT NOT NULL REFERENCES classification_runs(id) ON DELETE CASCADE,
	position  INTEGER NOT NULL,
	label     TEXT NOT NULL,
	score     %[2]s NOT NULL,
	PRIMARY KEY (run_id, label)
);

CREATE TABLE IF NOT EXISTS run_chunks (
	run_id        TEXT NOT NULL REFERENCES classification_runs(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	start_offset  INTEGER NOT NULL,
	end_offset    INTEGER NOT NULL,
	text          TEXT NOT NULL,
	top_label     TEXT NOT NULL,
	top_score     %[2]s NOT NULL,
	PRIMARY KEY (run_id, seq)
);
`

// Migrate creates any missing tables. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	ts, float := "TIMESTAMP", "REAL"
	if s.driver == DriverPostgres {
		ts, float = "TIMESTAMPTZ", "DOUBLE PRECISION"
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schema, ts, float)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
