package api

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/extract"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/label"
)

const (
	defaultRecordLimit = 100
	maxRecordLimit     = 1000
	datasetTimeout     = 5 * time.Second
	// DownloadName is the attachment name of the CSV download.
	DownloadName = "data_sentimen_filtered.csv"
)

// RecordsHandler serves read-only views of the processed dataset.
type RecordsHandler struct {
	source  Source
	timeout time.Duration
	logger  *zap.Logger
}

// NewRecordsHandler wires the dataset source and logger.
func NewRecordsHandler(source Source, logger *zap.Logger) *RecordsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordsHandler{source: source, timeout: datasetTimeout, logger: logger}
}

// Filter selects dataset rows. Empty fields match everything.
type Filter struct {
	Sources    []string
	Sentiments []string
	From       time.Time
	To         time.Time
	Query      string
}

// Match reports whether row passes f. Rows without a parseable date are
// excluded once a date bound is set.
func (f Filter) Match(row harvest.LabeledRow) bool {
	if len(f.Sources) > 0 && !containsFold(f.Sources, row.Source) {
		return false
	}
	if len(f.Sentiments) > 0 && !containsFold(f.Sentiments, row.Sentiment) {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		ts, ok := extract.ParseDate(row.PublishedAt)
		if !ok {
			return false
		}
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		if !f.From.IsZero() && day.Before(f.From) {
			return false
		}
		if !f.To.IsZero() && day.After(f.To) {
			return false
		}
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(row.Text), strings.ToLower(f.Query)) {
		return false
	}
	return true
}

func containsFold(list []string, v string) bool {
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, v) })
}

// Summary handles GET /v1/summary with the record filters. It returns the
// sentiment distribution overall and per source.
func (h *RecordsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.filtered(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, label.Summarize(rows))
}

// List handles GET /v1/records?source=&sentiment=&from=&to=&q=&limit=&offset=
// and returns {"total": n, "records": [...]}.
func (h *RecordsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := parseLimitOffset(r, defaultRecordLimit, maxRecordLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, ok := h.filtered(w, r)
	if !ok {
		return
	}
	total := len(rows)
	start := min(offset, total)
	end := min(start+limit, total)
	writeJSON(w, http.StatusOK, map[string]any{
		"total":   total,
		"records": rows[start:end],
	})
}

// Download handles GET /v1/records.csv and streams the filtered rows as a
// CSV attachment prefixed with a UTF-8 BOM.
func (h *RecordsHandler) Download(w http.ResponseWriter, r *http.Request) {
	rows, ok := h.filtered(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", dataset.ContentTypeCSV)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, DownloadName))
	w.WriteHeader(http.StatusOK)
	if err := dataset.WriteCSV(w, dataset.LabeledTable(rows)); err != nil {
		h.logger.Error("csv download failed", zap.Error(err))
	}
}

func (h *RecordsHandler) filtered(w http.ResponseWriter, r *http.Request) ([]harvest.LabeledRow, bool) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rows, err := h.source.Rows(ctx)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		writeError(w, http.StatusNotFound, "processed dataset not found")
		return nil, false
	case errors.Is(err, dataset.ErrMissingColumn):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return nil, false
	case err != nil:
		h.logger.Error("load dataset failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load dataset")
		return nil, false
	}

	out := rows[:0]
	for _, row := range rows {
		if filter.Match(row) {
			out = append(out, row)
		}
	}
	return out, true
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{
		Sources:    splitList(q["source"]),
		Sentiments: splitList(q["sentiment"]),
		Query:      strings.TrimSpace(q.Get("q")),
	}
	var err error
	if f.From, err = parseDay(q.Get("from")); err != nil {
		return Filter{}, errors.New("invalid from date")
	}
	if f.To, err = parseDay(q.Get("to")); err != nil {
		return Filter{}, errors.New("invalid to date")
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return Filter{}, errors.New("to must not be before from")
	}
	return f, nil
}

func parseDay(s string) (time.Time, error) {
	if s = strings.TrimSpace(s); s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day: %w", err)
	}
	return t, nil
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseLimitOffset(r *http.Request, def, maxLimit int) (int, int, error) {
	q := r.URL.Query()
	limit := def
	if limStr := q.Get("limit"); limStr != "" {
		val, err := strconv.Atoi(limStr)
		if err != nil || val <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		if val > maxLimit {
			val = maxLimit
		}
		limit = val
	}
	offset := 0
	if offStr := q.Get("offset"); offStr != "" {
		val, err := strconv.Atoi(offStr)
		if err != nil || val < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = val
	}
	return limit, offset, nil
}
