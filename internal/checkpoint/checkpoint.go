// Package checkpoint writes timestamped audit snapshots of in-progress runs.
// Snapshots are never read back.
package checkpoint

import (
	"context"
	"fmt"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
)

// StampLayout is the timestamp suffix of checkpoint file names.
const StampLayout = "20060102_150405"

// Writer stores checkpoints under Dir through a BlobStore.
type Writer struct {
	store  harvest.BlobStore
	dir    string
	clock  harvest.Clock
	logger *zap.Logger
}

// New builds a Writer.
func New(store harvest.BlobStore, dir string, clock harvest.Clock, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, dir: dir, clock: clock, logger: logger}
}

// Path returns the object path for a checkpoint labelled label.
func (w *Writer) Path(label string) string {
	name := fmt.Sprintf("%s_%s.csv", label, w.clock.Now().Format(StampLayout))
	return path.Join(w.dir, name)
}

// Write snapshots recs. Empty input performs no write. Failures are logged
// and counted; the returned bool reports whether a file was written.
func (w *Writer) Write(ctx context.Context, label string, recs []harvest.HarvestedRecord) (string, bool) {
	if len(recs) == 0 {
		return "", false
	}
	objectPath := w.Path(label)
	uri, err := dataset.Put(ctx, w.store, objectPath, dataset.RecordsTable(recs, true))
	if err != nil {
		metrics.ObserveCheckpoint("error")
		w.logger.Error("checkpoint write failed", zap.String("path", objectPath), zap.Error(err))
		return "", false
	}
	metrics.ObserveCheckpoint("ok")
	w.logger.Info("checkpoint saved", zap.String("uri", uri), zap.Int("records", len(recs)))
	return uri, true
}
