package label

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
)

// MinCleanLength is the shortest cleaned text that is kept and classified.
const MinCleanLength = 3

// ErrNoInput is returned when none of the configured raw files could be loaded.
var ErrNoInput = errors.New("no labeling input available")

// Column aliases recognised in raw CSVs, in priority order.
var (
	TextColumns = []string{"teks", "text", "teks_berita", "ringkasan_berita", "comment"}
	DateColumns = []string{"tanggal_publikasi", "timestamp", "tanggal", "date"}
)

// Input is one raw CSV and the source label its rows receive.
type Input struct {
	Source string
	Path   string
	// Limit caps the rows read from the file when > 0.
	Limit int
}

// Labeler loads raw CSVs, cleans and classifies their texts.
type Labeler struct {
	classifier Classifier
	minScore   float64
	open       func(path string) (io.ReadCloser, error)
	logger     *zap.Logger
}

// New builds a Labeler.
func New(classifier Classifier, minScore float64, logger *zap.Logger) *Labeler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Labeler{
		classifier: classifier,
		minScore:   minScore,
		open:       func(path string) (io.ReadCloser, error) { return os.Open(path) },
		logger:     logger,
	}
}

// Load reads every input. Missing or unreadable files are logged and skipped;
// rows with blank text are dropped.
func (l *Labeler) Load(inputs []Input) ([]harvest.LabeledRow, error) {
	var (
		out    []harvest.LabeledRow
		loaded int
	)
	for _, in := range inputs {
		rows, err := l.loadInput(in)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			l.logger.Warn("input file not found, skipping", zap.String("source", in.Source), zap.String("path", in.Path))
			continue
		case err != nil:
			l.logger.Error("loading input failed", zap.String("source", in.Source), zap.String("path", in.Path), zap.Error(err))
			continue
		}
		loaded++
		l.logger.Info("input loaded", zap.String("source", in.Source), zap.Int("rows", len(rows)))
		out = append(out, rows...)
	}
	if loaded == 0 {
		return nil, ErrNoInput
	}

	kept := out[:0]
	for _, r := range out {
		if strings.TrimSpace(r.Text) != "" {
			kept = append(kept, r)
		}
	}
	if dropped := len(out) - len(kept); dropped > 0 {
		l.logger.Info("dropped rows without text", zap.Int("dropped", dropped))
	}
	return kept, nil
}

func (l *Labeler) loadInput(in Input) ([]harvest.LabeledRow, error) {
	f, err := l.open(in.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	t, err := dataset.ReadCSV(f)
	if err != nil {
		return nil, err
	}
	text := t.Column(TextColumns...)
	if text < 0 {
		return nil, fmt.Errorf("%w: one of %s", dataset.ErrMissingColumn, strings.Join(TextColumns, ", "))
	}
	date := t.Column(DateColumns...)

	rows := t.Rows
	if in.Limit > 0 && len(rows) > in.Limit {
		rows = rows[:in.Limit]
	}
	out := make([]harvest.LabeledRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, harvest.LabeledRow{
			Source:      in.Source,
			PublishedAt: dataset.Cell(row, date),
			Text:        dataset.Cell(row, text),
		})
	}
	return out, nil
}

// Label cleans and classifies rows, dropping those whose cleaned text is
// shorter than MinCleanLength.
func (l *Labeler) Label(ctx context.Context, rows []harvest.LabeledRow) []harvest.LabeledRow {
	out := make([]harvest.LabeledRow, 0, len(rows))
	for i, r := range rows {
		if ctx.Err() != nil {
			l.logger.Warn("labeling interrupted", zap.Int("labeled", len(out)), zap.Int("remaining", len(rows)-i))
			break
		}
		r.CleanText = CleanText(r.Text)
		if utf8.RuneCountInString(r.CleanText) < MinCleanLength {
			continue
		}
		r.Sentiment = l.Sentiment(ctx, r.CleanText)
		metrics.ObserveSentiment(r.Source, r.Sentiment)
		out = append(out, r)
	}
	return out
}

// Sentiment classifies one cleaned text. Short texts and classifier
// failures are neutral.
func (l *Labeler) Sentiment(ctx context.Context, text string) string {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < MinCleanLength {
		return harvest.Neutral
	}
	p, err := l.classifier.Classify(ctx, text)
	if err != nil {
		l.logger.Warn("classification failed, using neutral", zap.Error(err))
		return harvest.Neutral
	}
	return MapLabel(p, l.minScore)
}

// Run loads, labels and stores the processed dataset at path.
func (l *Labeler) Run(ctx context.Context, inputs []Input, store harvest.BlobStore, path string) (Summary, string, error) {
	rows, err := l.Load(inputs)
	if err != nil {
		return Summary{}, "", err
	}
	l.logger.Info("labeling rows", zap.Int("rows", len(rows)))
	labeled := l.Label(ctx, rows)

	uri, err := dataset.Put(ctx, store, path, dataset.LabeledTable(labeled))
	if err != nil {
		return Summary{}, "", fmt.Errorf("store processed dataset: %w", err)
	}
	summary := Summarize(labeled)
	summary.Log(l.logger)
	l.logger.Info("processed dataset written", zap.String("uri", uri), zap.Int("rows", len(labeled)))
	return summary, uri, nil
}
