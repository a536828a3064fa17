// Package dataset serializes harvest outputs as UTF-8 CSV (with BOM) and XLSX
// and reads raw CSVs back for the labeling stage.
package dataset

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// BOM is the UTF-8 byte order mark written ahead of every CSV so that
// spreadsheet tools pick the right encoding.
const BOM = "\ufeff"

// Content types used when storing artifacts.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ErrNoHeader is returned when a CSV has no header row.
var ErrNoHeader = errors.New("csv has no header row")

// Table is an in-memory CSV with a header.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the first header matching one of names
// (case-insensitive, in the order given), or -1.
func (t Table) Column(names ...string) int {
	for _, name := range names {
		for i, h := range t.Header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

// Cell returns row[col] or "" when col is out of range.
func Cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return row[col]
}

// WriteCSV writes a BOM, the header and rows to w.
func WriteCSV(w io.Writer, t Table) error {
	if _, err := io.WriteString(w, BOM); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

// ReadCSV parses r, skipping a leading BOM. Short rows are padded to the
// header width.
func ReadCSV(r io.Reader) (Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(BOM)); err == nil && string(head) == BOM {
		_, _ = br.Discard(len(BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return Table{}, ErrNoHeader
	}
	t := Table{Header: records[0], Rows: records[1:]}
	for i, row := range t.Rows {
		if len(row) < len(t.Header) {
			t.Rows[i] = append(row, make([]string, len(t.Header)-len(row))...)
		}
	}
	return t, nil
}

// Put renders t as CSV and stores it under path.
func Put(ctx context.Context, store harvest.BlobStore, path string, t Table) (string, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, t); err != nil {
		return "", err
	}
	uri, err := store.PutObject(ctx, path, ContentTypeCSV, &buf)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", path, err)
	}
	return uri, nil
}
