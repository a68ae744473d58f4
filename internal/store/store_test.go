package store

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "docclass.db"),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(docID string, sig Signature, top string) *Run {
	return &Run{
		DocumentID: docID,
		Signature:  sig,
		Scores: []LabelScore{
			{Label: "Legal Document", Score: 0.7},
			{Label: "Other", Score: 0.3},
		},
		Chunks: []RunChunk{
			{Start: 0, End: 10, Text: "first", TopLabel: top, TopScore: 0.9},
			{Start: 10, End: 20, Text: "second", TopLabel: top, TopScore: 0.8},
		},
	}
}

var sigA = Signature{Model: "m1", Strategy: "paragraph", ChunkSize: 512, Overlap: 0}

func TestDocumentLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "contract.pdf", "The parties agree.")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, doc.Status)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "The parties agree.", got.Text)
	assert.Equal(t, "contract.pdf", got.Filename)

	byName, err := s.FindDocumentByFilename(ctx, "contract.pdf")
	require.NoError(t, err)
	assert.Equal(t, doc.ID, byName.ID)

	_, err = s.CreateDocument(ctx, "contract.pdf", "again")
	require.ErrorIs(t, err, ErrConflict)

	require.NoError(t, s.MarkFailed(ctx, doc.ID))
	got, err = s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)

	docs, err := s.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Text)
}

func TestMissingDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetDocument(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.MarkFailed(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, s.BeginAttempt(ctx, "nope", sigA), ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "nope"), ErrNotFound)
	assert.ErrorIs(t, s.SaveRun(ctx, sampleRun("nope", sigA, "Other")), ErrNotFound)
}

func TestSaveRun_CompletesDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "a.txt", "text")
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, sigA, "Legal Document")))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)

	runs, err := s.ListRuns(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, sigA, runs[0].Signature)
	assert.Equal(t, []LabelScore{{"Legal Document", 0.7}, {"Other", 0.3}}, runs[0].Scores)
	require.Len(t, runs[0].Chunks, 2)
	assert.Equal(t, "first", runs[0].Chunks[0].Text)
	assert.Equal(t, 10, runs[0].Chunks[1].Start)
}

func TestSaveRun_ReplacesSameSignatureOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "a.txt", "text")
	require.NoError(t, err)

	sigB := sigA
	sigB.MultiLabel = true

	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, sigA, "Other")))
	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, sigB, "Other")))
	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, sigA, "Legal Document")))

	runs, err := s.ListRuns(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	bySig := map[Signature]Run{}
	for _, r := range runs {
		bySig[r.Signature] = r
	}
	assert.Equal(t, "Legal Document", bySig[sigA].Chunks[0].TopLabel)
	assert.Equal(t, "Other", bySig[sigB].Chunks[0].TopLabel)
	assert.Len(t, bySig[sigA].Chunks, 2, "replaced run must not accumulate chunks")
}

func TestBeginAttempt_DropsMatchingRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "a.txt", "text")
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, sigA, "Other")))

	other := Signature{Model: "m2", Strategy: "fixed", ChunkSize: 200, Overlap: 50}
	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, other, "Other")))

	require.NoError(t, s.BeginAttempt(ctx, doc.ID, sigA))

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)

	runs, err := s.ListRuns(ctx, doc.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, other, runs[0].Signature)
}

func TestSaveRun_FailureLeavesNothing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "a.txt", "text")
	require.NoError(t, err)

	run := sampleRun(doc.ID, sigA, "Other")
	// Duplicate label violates the (run_id, label) key after the run row is written.
	run.Scores = append(run.Scores, LabelScore{Label: "Other", Score: 0.1})
	require.Error(t, s.SaveRun(ctx, run))

	runs, err := s.ListRuns(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status, "status flip must roll back with the run")
}

func TestDeleteAndReplaceDocument(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "a.txt", "old")
	require.NoError(t, err)
	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, sigA, "Other")))

	require.NoError(t, s.ReplaceDocument(ctx, doc.ID, "new"))
	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "new", got.Text)
	assert.Equal(t, StatusProcessing, got.Status)
	runs, err := s.ListRuns(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, s.SaveRun(ctx, sampleRun(doc.ID, sigA, "Other")))
	require.NoError(t, s.DeleteDocument(ctx, doc.ID))
	_, err = s.GetDocument(ctx, doc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	runs, err = s.ListRuns(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: DriverPostgres}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", pg.rebind("SELECT * FROM t WHERE a = ? AND b = ?"))
	lite := &Store{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("x.db"))
	assert.Equal(t, "x.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", sqliteDSN("x.db?mode=rwc"))
	assert.Equal(t, "x.db?_pragma=journal_mode(WAL)", sqliteDSN("x.db?_pragma=journal_mode(WAL)"))
}
