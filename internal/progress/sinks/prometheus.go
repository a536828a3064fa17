package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/topic-harvester/internal/progress"
)

// PrometheusSink exports run, batch and task progress as Prometheus metrics.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	batchesDone   prometheus.Counter
	batchDuration prometheus.Histogram
	tasks         *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	checkpoints   prometheus.Counter

	active *runTracker
}

// NewPrometheusSink registers the collectors against reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_runs_started_total",
			Help: "Harvest runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_runs_completed_total",
			Help: "Harvest runs completed partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_runs_active",
			Help: "Harvest runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_run_duration_seconds",
			Help:    "Wall time per completed run.",
			Buckets: []float64{30, 60, 300, 600, 1800, 3600, 7200},
		}, []string{"result"}),
		batchesDone: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_batches_completed_total",
			Help: "Scheduler batches completed.",
		}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_batch_duration_seconds",
			Help:    "Wall time per scheduler batch.",
			Buckets: []float64{5, 10, 20, 40, 60, 120, 300},
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_tasks_total",
			Help: "Fetch tasks partitioned by outcome.",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "harvest_task_duration_seconds",
			Help:    "Fetch task latency partitioned by outcome.",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 40, 60},
		}, []string{"outcome"}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_checkpoint_events_total",
			Help: "Checkpoint milestones reported by the scheduler.",
		}),
		active: &runTracker{running: make(map[[16]byte]struct{})},
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted, s.runsCompleted, s.runsActive, s.runDuration,
		s.batchesDone, s.batchDuration, s.tasks, s.taskDuration, s.checkpoints,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			s.runsStarted.Inc()
			if s.active.start(evt.RunID) {
				s.runsActive.Inc()
			}
		case progress.StageRunDone:
			s.finishRun(evt, "success")
		case progress.StageRunError:
			s.finishRun(evt, "error")
		case progress.StageBatchDone:
			s.batchesDone.Inc()
			if evt.Dur > 0 {
				s.batchDuration.Observe(evt.Dur.Seconds())
			}
		case progress.StageTaskDone:
			outcome := string(evt.Outcome)
			s.tasks.WithLabelValues(outcome).Inc()
			if evt.Dur > 0 {
				s.taskDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
			}
		case progress.StageCheckpoint:
			s.checkpoints.Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) finishRun(evt progress.Event, result string) {
	s.runsCompleted.WithLabelValues(result).Inc()
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	}
	if s.active.finish(evt.RunID) {
		s.runsActive.Dec()
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) finish(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
