package api

import (
	"context"
	"fmt"
	"os"

	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// Source yields the processed dataset.
type Source interface {
	Rows(ctx context.Context) ([]harvest.LabeledRow, error)
}

// FileSource reads the processed CSV from disk on every call, so a new
// labeling run is visible without a restart.
type FileSource struct {
	Path string
}

// Rows implements Source. A file missing the teks or sentimen column fails
// with dataset.ErrMissingColumn.
func (s FileSource) Rows(context.Context) ([]harvest.LabeledRow, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	t, err := dataset.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	return dataset.LabeledRows(t)
}
