package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/docclass/internal/store"
)

func TestRunsXLSX(t *testing.T) {
	doc := &store.Document{ID: "d1", Filename: "contract.pdf"}
	runs := []store.Run{{
		ID:         "r1",
		DocumentID: "d1",
		Signature:  store.Signature{Model: "bart", Strategy: "paragraph", ChunkSize: 512},
		CreatedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Scores: []store.LabelScore{
			{Label: "Legal Document", Score: 0.75},
			{Label: "Other", Score: 0.25},
		},
		Chunks: []store.RunChunk{
			{Start: 0, End: 12, Text: "The parties.", TopLabel: "Legal Document", TopScore: 0.9},
		},
	}}

	data, err := RunsXLSX(doc, runs)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Scores", "Chunks"}, f.GetSheetList())

	scores, err := f.GetRows("Scores")
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, "Label", scores[0][8])
	assert.Equal(t, "contract.pdf", scores[1][0])
	assert.Equal(t, "Legal Document", scores[1][8])
	assert.Equal(t, "0.75", scores[1][9])
	assert.Equal(t, "2026-03-01 12:00:00", scores[1][7])

	chunks, err := f.GetRows("Chunks")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "The parties.", chunks[1][8])
	assert.Equal(t, "12", chunks[1][5])
}

func TestRunsXLSX_NoRuns(t *testing.T) {
	data, err := RunsXLSX(&store.Document{Filename: "x.txt"}, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Scores")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	long := strings.Repeat("é", 10)
	got := truncate(long, 5)
	assert.Equal(t, 5, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))
}
