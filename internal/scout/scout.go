// Package scout defines the discovery capability shared by per-source scouts
// and the pacing used between their queries.
package scout

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
)

// Query is one discovery request.
type Query struct {
	Keyword string
	From    time.Time
	To      time.Time
}

// Scout produces item references for a query.
type Scout interface {
	Name() string
	Scout(ctx context.Context, q Query) ([]harvest.ItemReference, error)
}

// Pacer waits a uniformly random duration in [Min, Max] between queries.
type Pacer struct {
	Min   time.Duration
	Max   time.Duration
	Rand  func() float64
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer returns a Pacer over [lo, hi].
func NewPacer(lo, hi time.Duration) *Pacer {
	if hi < lo {
		hi = lo
	}
	return &Pacer{Min: lo, Max: hi, Rand: rand.Float64, Sleep: Sleep}
}

// Delay draws the next pause.
func (p *Pacer) Delay() time.Duration {
	span := p.Max - p.Min
	if span <= 0 || p.Rand == nil {
		return p.Min
	}
	return p.Min + time.Duration(p.Rand()*float64(span))
}

// Pause sleeps for Delay or until ctx ends.
func (p *Pacer) Pause(ctx context.Context) error {
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	return sleep(ctx, p.Delay())
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("pause: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

// Sweep runs s for every keyword in order, pausing between keywords. Failed
// queries are logged and skipped; the error is non-nil only when ctx ended.
func Sweep(
	ctx context.Context,
	s Scout,
	keywords []string,
	from, to time.Time,
	pacer *Pacer,
	logger *zap.Logger,
) ([]harvest.ItemReference, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var all []harvest.ItemReference
	for i, kw := range keywords {
		refs, err := s.Scout(ctx, Query{Keyword: kw, From: from, To: to})
		if err != nil {
			logger.Error("scout query failed", zap.String("scout", s.Name()), zap.String("keyword", kw), zap.Error(err))
		} else {
			metrics.ObserveScoutItems(s.Name(), len(refs))
			logger.Info("scout query done", zap.String("scout", s.Name()), zap.String("keyword", kw), zap.Int("found", len(refs)))
			all = append(all, refs...)
		}
		if i == len(keywords)-1 {
			break
		}
		if err := pacer.Pause(ctx); err != nil {
			return all, err
		}
	}
	return all, nil
}
