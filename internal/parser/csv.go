package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docclass/internal/doctree"
)

// csvBatchRows is the number of data rows rendered into one node.
const csvBatchRows = 20

// CSVParser handles CSV files. The first row is treated as headers and each
// batch of data rows is rendered as "header: value" lines.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: titleFromFilename(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	headers, rows := records[0], records[1:]
	for start := 0; start < len(rows); start += csvBatchRows {
		batch := rows[start:min(start+csvBatchRows, len(rows))]

		var text strings.Builder
		for _, row := range batch {
			cells := make([]string, 0, len(row))
			for j, cell := range row {
				if j < len(headers) && headers[j] != "" {
					cells = append(cells, headers[j]+": "+cell)
				} else {
					cells = append(cells, cell)
				}
			}
			text.WriteString(strings.Join(cells, ", "))
			text.WriteByte('\n')
		}
		tree.Children = append(tree.Children, &doctree.DocNode{Text: text.String()})
	}

	return tree, nil
}
