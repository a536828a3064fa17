// Package scheduler drives fetch workers over a reference list in sequential
// batches with a bounded pool per batch.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
	"github.com/JakeFAU/topic-harvester/internal/progress"
)

// Processor converts one reference into a record or a null outcome.
type Processor interface {
	Process(ctx context.Context, ref harvest.ItemReference) (harvest.HarvestedRecord, bool)
}

// Checkpointer snapshots the accumulated records.
type Checkpointer interface {
	Write(ctx context.Context, label string, recs []harvest.HarvestedRecord) (string, bool)
}

// Config controls batching.
type Config struct {
	BatchSize       int
	Workers         int
	TaskTimeout     time.Duration
	CheckpointEvery int
	CheckpointLabel string
}

// Scheduler owns the accumulation of one run at a time.
type Scheduler struct {
	cfg          Config
	processor    Processor
	checkpointer Checkpointer
	emitter      progress.Emitter
	clock        harvest.Clock
	logger       *zap.Logger
}

// New builds a Scheduler. checkpointer and emitter may be nil.
func New(
	cfg Config,
	processor Processor,
	checkpointer Checkpointer,
	emitter progress.Emitter,
	clock harvest.Clock,
	logger *zap.Logger,
) *Scheduler {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 40 * time.Second
	}
	if cfg.CheckpointLabel == "" {
		cfg.CheckpointLabel = "batch_checkpoint"
	}
	if emitter == nil {
		emitter = progress.Discard{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:          cfg,
		processor:    processor,
		checkpointer: checkpointer,
		emitter:      emitter,
		clock:        clock,
		logger:       logger,
	}
}

type taskResult struct {
	ref     harvest.ItemReference
	record  harvest.HarvestedRecord
	outcome progress.Outcome
	dur     time.Duration
}

// Run processes refs and returns the harvested records in completion order.
// If ctx ends, remaining batches are skipped and the partial result returned.
func (s *Scheduler) Run(ctx context.Context, runID string, refs []harvest.ItemReference) ([]harvest.HarvestedRecord, harvest.RunStats) {
	var (
		stats   harvest.RunStats
		records []harvest.HarvestedRecord
	)
	id := progress.ParseRunID(runID)
	runStart := s.clock.Now()
	total := (len(refs) + s.cfg.BatchSize - 1) / s.cfg.BatchSize
	s.emit(progress.Event{RunID: id, Stage: progress.StageRunStart})
	s.logger.Info("harvest run started",
		zap.String("run_id", runID),
		zap.Int("references", len(refs)),
		zap.Int("batches", total),
	)

	for start, n := 0, 1; start < len(refs); start, n = start+s.cfg.BatchSize, n+1 {
		if ctx.Err() != nil {
			s.logger.Warn("run cancelled, skipping remaining batches", zap.Int("batch", n), zap.Error(ctx.Err()))
			break
		}
		end := min(start+s.cfg.BatchSize, len(refs))
		batch := refs[start:end]
		batchStart := s.clock.Now()
		s.logger.Info("processing batch", zap.Int("batch", n), zap.Int("of", total), zap.Int("size", len(batch)))
		s.emit(progress.Event{RunID: id, Stage: progress.StageBatchStart, Batch: n})

		harvested := 0
		for res := range s.runBatch(ctx, batch) {
			stats.Attempted++
			switch res.outcome {
			case progress.OutcomeHarvested:
				stats.Succeeded++
				harvested++
				records = append(records, res.record)
			case progress.OutcomeTimeout:
				stats.TimedOut++
				s.logger.Error("task timed out", zap.Int("batch", n), zap.String("url", res.ref.URL), zap.Duration("timeout", s.cfg.TaskTimeout))
			default:
				stats.Dropped++
			}
			s.logger.Debug("task finished", zap.Int("batch", n), zap.String("url", res.ref.URL), zap.String("outcome", string(res.outcome)))
			s.emit(progress.Event{
				RunID:   id,
				Stage:   progress.StageTaskDone,
				Batch:   n,
				Site:    metrics.SanitizeSite(res.ref.URL),
				URL:     res.ref.URL,
				Outcome: res.outcome,
				Dur:     res.dur,
			})
		}
		stats.Batches++
		s.logger.Info("batch done",
			zap.Int("batch", n),
			zap.Int("harvested", harvested),
			zap.Int("total_records", len(records)),
		)
		s.emit(progress.Event{
			RunID:   id,
			Stage:   progress.StageBatchDone,
			Batch:   n,
			Records: len(records),
			Dur:     s.clock.Now().Sub(batchStart),
		})

		if s.cfg.CheckpointEvery > 0 && n%s.cfg.CheckpointEvery == 0 {
			s.checkpoint(ctx, id, records, &stats)
		}
	}

	stage := progress.StageRunDone
	if errors.Is(ctx.Err(), context.Canceled) {
		stage = progress.StageRunError
	}
	s.emit(progress.Event{RunID: id, Stage: stage, Records: len(records), Dur: s.clock.Now().Sub(runStart)})
	s.logger.Info("harvest run finished",
		zap.String("run_id", runID),
		zap.Int("attempted", stats.Attempted),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("dropped", stats.Dropped),
		zap.Int("timed_out", stats.TimedOut),
	)
	return records, stats
}

// runBatch starts at most Workers tasks at a time and streams their results.
// The channel is closed once every task has reported.
func (s *Scheduler) runBatch(ctx context.Context, batch []harvest.ItemReference) <-chan taskResult {
	results := make(chan taskResult, len(batch))
	go func() {
		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)
		for _, ref := range batch {
			g.Go(func() error {
				results <- s.runTask(ctx, ref)
				return nil
			})
		}
		_ = g.Wait()
		close(results)
	}()
	return results
}

// runTask waits for one Process call up to TaskTimeout. A task that overruns
// is reported as timed out and its eventual result is discarded. A task still
// running when the run is cancelled is reported as dropped.
func (s *Scheduler) runTask(ctx context.Context, ref harvest.ItemReference) taskResult {
	metrics.IncActiveTasks()
	defer metrics.DecActiveTasks()

	start := s.clock.Now()
	taskCtx, cancel := context.WithTimeout(ctx, s.cfg.TaskTimeout)
	defer cancel()

	type outcome struct {
		rec harvest.HarvestedRecord
		ok  bool
	}
	done := make(chan outcome, 1)
	go func() {
		rec, ok := s.processor.Process(taskCtx, ref)
		done <- outcome{rec: rec, ok: ok}
	}()

	res := taskResult{ref: ref, outcome: progress.OutcomeDropped}
	select {
	case out := <-done:
		if out.ok {
			res.outcome = progress.OutcomeHarvested
			res.record = out.rec
		}
	case <-taskCtx.Done():
		// Only the task's own deadline is a timeout; a cancelled run drops it.
		if ctx.Err() == nil && errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			res.outcome = progress.OutcomeTimeout
		}
	}
	res.dur = s.clock.Now().Sub(start)
	return res
}

func (s *Scheduler) checkpoint(ctx context.Context, id [16]byte, records []harvest.HarvestedRecord, stats *harvest.RunStats) {
	if s.checkpointer == nil || len(records) == 0 {
		return
	}
	uri, ok := s.checkpointer.Write(ctx, s.cfg.CheckpointLabel, records)
	if !ok {
		return
	}
	stats.Checkpoints++
	s.emit(progress.Event{RunID: id, Stage: progress.StageCheckpoint, Records: len(records), Note: uri})
}

func (s *Scheduler) emit(evt progress.Event) {
	evt.TS = s.clock.Now()
	s.emitter.Emit(evt)
}
