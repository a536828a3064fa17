// Package pipeline composes scouts, the batch scheduler and the dataset
// writers into the runs exposed by the CLI.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/dedup"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
	"github.com/JakeFAU/topic-harvester/internal/scout"
)

// ArticlesSheet names the worksheet of the spreadsheet output.
const ArticlesSheet = "Articles"

// Runner accumulates records for a reference list.
type Runner interface {
	Run(ctx context.Context, runID string, refs []harvest.ItemReference) ([]harvest.HarvestedRecord, harvest.RunStats)
}

// NewsConfig describes one news harvest.
type NewsConfig struct {
	Keywords   []string
	From       time.Time
	To         time.Time
	RawDir     string
	OutputName string
	Topic      string
	// TopSources caps the by-source summary (default 10).
	TopSources int
}

// NewsResult reports what a news run produced.
type NewsResult struct {
	RunID      string
	References int
	Stats      harvest.RunStats
	Records    []harvest.HarvestedRecord
	URIs       []string
	BySource   []dataset.Count
	ByKeyword  []dataset.Count
}

// News runs discovery, harvest and persistence for the news portals.
type News struct {
	cfg       NewsConfig
	scout     scout.Scout
	pacer     *scout.Pacer
	runner    Runner
	store     harvest.BlobStore
	records   harvest.RecordStore
	publisher harvest.Publisher
	ids       harvest.IDGenerator
	clock     harvest.Clock
	logger    *zap.Logger
}

// NewsDeps are the collaborators of a news run. Records and Publisher are optional.
type NewsDeps struct {
	Scout     scout.Scout
	Pacer     *scout.Pacer
	Runner    Runner
	Store     harvest.BlobStore
	Records   harvest.RecordStore
	Publisher harvest.Publisher
	IDs       harvest.IDGenerator
	Clock     harvest.Clock
	Logger    *zap.Logger
}

// NewNews builds a news pipeline.
func NewNews(cfg NewsConfig, deps NewsDeps) *News {
	if cfg.TopSources <= 0 {
		cfg.TopSources = 10
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "hasil_crawling_portal_berita"
	}
	if deps.Pacer == nil {
		deps.Pacer = scout.NewPacer(0, 0)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &News{
		cfg:       cfg,
		scout:     deps.Scout,
		pacer:     deps.Pacer,
		runner:    deps.Runner,
		store:     deps.Store,
		records:   deps.Records,
		publisher: deps.Publisher,
		ids:       deps.IDs,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
}

// Run executes the news pipeline end to end. Finding nothing is not an error.
// If ctx ends during discovery, the references found so far are still
// harvested and written, and the discovery error is returned with the result.
func (n *News) Run(ctx context.Context) (NewsResult, error) {
	runID, err := n.ids.NewID()
	if err != nil {
		return NewsResult{}, fmt.Errorf("run id: %w", err)
	}
	res := NewsResult{RunID: runID}
	log := n.logger.With(zap.String("run_id", runID))

	log.Info("discovering articles",
		zap.Int("keywords", len(n.cfg.Keywords)),
		zap.Time("from", n.cfg.From),
		zap.Time("to", n.cfg.To),
	)
	refs, sweepErr := scout.Sweep(ctx, n.scout, n.cfg.Keywords, n.cfg.From, n.cfg.To, n.pacer, n.logger)
	var runErr error
	if sweepErr != nil {
		runErr = fmt.Errorf("discover: %w", sweepErr)
		log.Warn("discovery interrupted, continuing with partial references",
			zap.Int("found", len(refs)),
			zap.Error(sweepErr),
		)
	}
	unique := dedup.References(refs)
	metrics.ObserveDedup("references", len(refs)-len(unique))
	res.References = len(unique)
	log.Info("references collected", zap.Int("found", len(refs)), zap.Int("unique", len(unique)))
	if len(unique) == 0 {
		log.Warn("no article references found")
		return res, runErr
	}

	recs, stats := n.runner.Run(ctx, runID, unique)
	res.Stats = stats
	final := dataset.Finalize(recs)
	metrics.ObserveDedup("records", len(recs)-len(final))
	res.Records = final
	log.Info("harvest finished",
		zap.Int("records", len(recs)),
		zap.Int("unique_records", len(final)),
		zap.Int("dropped", stats.Dropped),
		zap.Int("timed_out", stats.TimedOut),
	)
	if len(final) == 0 {
		log.Warn("no valid articles harvested")
		return res, runErr
	}

	// The run context may be cancelled; saving gets its own budget.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()
	res.URIs, err = n.write(saveCtx, final)
	if err != nil {
		return res, errors.Join(runErr, err)
	}
	if n.records != nil {
		if err := n.records.StoreRecords(saveCtx, runID, final); err != nil {
			log.Warn("record store write failed", zap.Error(err))
		}
	}
	announce(saveCtx, n.publisher, n.cfg.Topic, harvest.DatasetReady{
		RunID:     runID,
		Stage:     "news",
		URIs:      res.URIs,
		Records:   len(final),
		CreatedAt: n.clock.Now().UTC(),
	}, log)

	res.BySource = dataset.CountBy(final, func(r harvest.HarvestedRecord) string { return r.Source }, n.cfg.TopSources)
	res.ByKeyword = dataset.CountBy(final, func(r harvest.HarvestedRecord) string { return r.Keyword }, 0)
	logCounts(log, "articles by source", res.BySource)
	logCounts(log, "articles by keyword", res.ByKeyword)
	return res, runErr
}

func (n *News) write(ctx context.Context, recs []harvest.HarvestedRecord) ([]string, error) {
	table := dataset.RecordsTable(recs, false)
	base := path.Join(n.cfg.RawDir, n.cfg.OutputName)
	csvURI, err := dataset.Put(ctx, n.store, base+".csv", table)
	if err != nil {
		return nil, fmt.Errorf("store csv: %w", err)
	}
	xlsxURI, err := dataset.PutXLSX(ctx, n.store, base+".xlsx", ArticlesSheet, table)
	if err != nil {
		return []string{csvURI}, fmt.Errorf("store xlsx: %w", err)
	}
	n.logger.Info("dataset written", zap.String("csv", csvURI), zap.String("xlsx", xlsxURI), zap.Int("rows", len(recs)))
	return []string{csvURI, xlsxURI}, nil
}

func announce(ctx context.Context, pub harvest.Publisher, topic string, evt harvest.DatasetReady, log *zap.Logger) {
	if pub == nil {
		return
	}
	id, err := pub.Publish(ctx, topic, evt)
	if err != nil {
		log.Warn("dataset notification failed", zap.String("stage", evt.Stage), zap.Error(err))
		return
	}
	log.Debug("dataset notification published", zap.String("message_id", id))
}

func logCounts(log *zap.Logger, msg string, counts []dataset.Count) {
	for _, c := range counts {
		log.Info(msg, zap.String("key", c.Key), zap.Int("count", c.Count))
	}
}
