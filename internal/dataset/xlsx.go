package dataset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// MaxColumnWidth caps spreadsheet column widths.
const MaxColumnWidth = 50

// WriteXLSX writes t as a single-sheet workbook. Each column is sized to its
// longest value plus two, capped at MaxColumnWidth.
func WriteXLSX(w io.Writer, sheet string, t Table) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	rows := append([][]string{t.Header}, t.Rows...)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	for col, width := range ColumnWidths(t) {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ColumnWidths returns min(longest value + 2, MaxColumnWidth) per column.
func ColumnWidths(t Table) []float64 {
	widths := make([]float64, len(t.Header))
	for i, h := range t.Header {
		longest := utf8.RuneCountInString(h)
		for _, row := range t.Rows {
			if n := utf8.RuneCountInString(Cell(row, i)); n > longest {
				longest = n
			}
		}
		widths[i] = float64(min(longest+2, MaxColumnWidth))
	}
	return widths
}

// PutXLSX renders t as a workbook and stores it under path.
func PutXLSX(ctx context.Context, store harvest.BlobStore, path, sheet string, t Table) (string, error) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sheet, t); err != nil {
		return "", err
	}
	uri, err := store.PutObject(ctx, path, ContentTypeXLSX, &buf)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", path, err)
	}
	return uri, nil
}
