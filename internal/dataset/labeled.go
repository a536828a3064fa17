package dataset

import (
	"errors"
	"fmt"
	"slices"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// LabeledHeader is the column order of the processed dataset.
var LabeledHeader = []string{"sumber", "tanggal_publikasi", "teks", "teks_bersih", "sentimen"}

// ErrMissingColumn is returned when a processed dataset lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// LabeledTable lays rows out under LabeledHeader.
func LabeledTable(rows []harvest.LabeledRow) Table {
	t := Table{Header: slices.Clone(LabeledHeader), Rows: make([][]string, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{r.Source, r.PublishedAt, r.Text, r.CleanText, r.Sentiment})
	}
	return t
}

// LabeledRows reads a processed dataset. The teks and sentimen columns are
// required; the rest are optional.
func LabeledRows(t Table) ([]harvest.LabeledRow, error) {
	text, sentiment := t.Column("teks"), t.Column("sentimen")
	if text < 0 {
		return nil, fmt.Errorf("%w: teks", ErrMissingColumn)
	}
	if sentiment < 0 {
		return nil, fmt.Errorf("%w: sentimen", ErrMissingColumn)
	}
	source, published, clean := t.Column("sumber"), t.Column("tanggal_publikasi"), t.Column("teks_bersih")
	out := make([]harvest.LabeledRow, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, harvest.LabeledRow{
			Source:      Cell(row, source),
			PublishedAt: Cell(row, published),
			Text:        Cell(row, text),
			CleanText:   Cell(row, clean),
			Sentiment:   Cell(row, sentiment),
		})
	}
	return out, nil
}
