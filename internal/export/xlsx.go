// Package export renders a document's classification runs as a workbook.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/dgallion1/docclass/internal/store"
)

const (
	scoresSheet = "Scores"
	chunksSheet = "Chunks"

	// Excel rejects cells longer than 32767 characters.
	maxCellText = 32000
)

// RunsXLSX returns an XLSX workbook with one row per label score and one
// row per persisted chunk across all runs of doc.
func RunsXLSX(doc *store.Document, runs []store.Run) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", scoresSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(chunksSheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}

	writeRow(f, scoresSheet, 1, "Document", "Run", "Model", "Strategy", "Chunk Size", "Overlap", "Multi Label", "Created", "Label", "Score")
	writeRow(f, chunksSheet, 1, "Run", "Model", "Strategy", "#", "Start", "End", "Top Label", "Top Score", "Text")

	scoreRow, chunkRow := 2, 2
	for _, r := range runs {
		created := r.CreatedAt.UTC().Format("2006-01-02 15:04:05")
		for _, s := range r.Scores {
			writeRow(f, scoresSheet, scoreRow, doc.Filename, r.ID, r.Model, r.Strategy, r.ChunkSize, r.Overlap, r.MultiLabel, created, s.Label, s.Score)
			scoreRow++
		}
		for i, c := range r.Chunks {
			writeRow(f, chunksSheet, chunkRow, r.ID, r.Model, r.Strategy, i+1, c.Start, c.End, c.TopLabel, c.TopScore, truncate(c.Text, maxCellText))
			chunkRow++
		}
	}

	_ = f.SetColWidth(scoresSheet, "A", "A", 28) // filename
	_ = f.SetColWidth(scoresSheet, "B", "B", 38) // run id
	_ = f.SetColWidth(scoresSheet, "C", "C", 34) // model
	_ = f.SetColWidth(scoresSheet, "I", "I", 26) // label
	_ = f.SetColWidth(chunksSheet, "A", "A", 38)
	_ = f.SetColWidth(chunksSheet, "G", "G", 26)
	_ = f.SetColWidth(chunksSheet, "I", "I", 80)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values ...any) {
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		_ = f.SetCellValue(sheet, cell, v)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
