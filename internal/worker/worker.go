// Package worker turns a single ItemReference into a HarvestedRecord.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/extract"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
)

// ErrInvalidLocator marks references whose URL cannot be fetched.
var ErrInvalidLocator = errors.New("locator is not an absolute http(s) url")

// Worker executes the fetch, extract and validate pipeline for one reference.
type Worker struct {
	fetcher   harvest.Fetcher
	extractor harvest.Extractor
	hasher    harvest.Hasher
	limiter   harvest.Limiter
	logger    *zap.Logger
}

// New constructs a Worker. limiter may be nil.
func New(
	fetcher harvest.Fetcher,
	extractor harvest.Extractor,
	hasher harvest.Hasher,
	limiter harvest.Limiter,
	logger *zap.Logger,
) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		fetcher:   fetcher,
		extractor: extractor,
		hasher:    hasher,
		limiter:   limiter,
		logger:    logger,
	}
}

// Process returns the harvested record for ref, or false when the reference
// was rejected, failed to load, or produced content that fails validation.
// Failures are logged here and never returned.
func (w *Worker) Process(ctx context.Context, ref harvest.ItemReference) (harvest.HarvestedRecord, bool) {
	logger := w.logger.With(zap.String("url", ref.URL), zap.String("keyword", ref.Keyword))
	rec, err := w.process(ctx, ref)
	switch {
	case err == nil:
		logger.Debug("record harvested", zap.Int("body_chars", len([]rune(rec.Body))))
		return rec, true
	case errors.Is(err, harvest.ErrBodyTooShort),
		errors.Is(err, harvest.ErrEmptyTitle),
		errors.Is(err, harvest.ErrRepetitiveBody):
		metrics.ObserveFetch(ref.URL, metrics.OutcomeInvalid, 0)
		logger.Warn("record rejected", zap.Error(err))
	case ctx.Err() != nil:
		metrics.ObserveFetch(ref.URL, metrics.OutcomeTimeout, 0)
		logger.Error("fetch abandoned", zap.Error(err))
	default:
		metrics.ObserveFetch(ref.URL, metrics.OutcomeError, 0)
		logger.Error("fetch failed", zap.Error(err))
	}
	return harvest.HarvestedRecord{}, false
}

func (w *Worker) process(ctx context.Context, ref harvest.ItemReference) (harvest.HarvestedRecord, error) {
	if !validLocator(ref.URL) {
		return harvest.HarvestedRecord{}, fmt.Errorf("%w: %q", ErrInvalidLocator, ref.URL)
	}
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, ref.URL); err != nil {
			return harvest.HarvestedRecord{}, fmt.Errorf("rate limit: %w", err)
		}
	}

	doc, err := w.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return harvest.HarvestedRecord{}, fmt.Errorf("fetch: %w", err)
	}
	content, err := w.extractor.Extract(doc)
	if err != nil {
		return harvest.HarvestedRecord{}, fmt.Errorf("extract: %w", err)
	}

	rec := buildRecord(ref, content)
	if err := harvest.Validate(rec); err != nil {
		return harvest.HarvestedRecord{}, err
	}
	rec.Fingerprint, err = harvest.Fingerprint(w.hasher, rec.Body)
	if err != nil {
		return harvest.HarvestedRecord{}, fmt.Errorf("fingerprint: %w", err)
	}
	metrics.ObserveFetch(ref.URL, metrics.OutcomeSuccess, len(doc.HTML))
	return rec, nil
}

// buildRecord merges extracted content with the provisional values carried by
// the reference.
func buildRecord(ref harvest.ItemReference, content harvest.Content) harvest.HarvestedRecord {
	rec := harvest.HarvestedRecord{
		Keyword:      ref.Keyword,
		Source:       ref.Source,
		PublishedAt:  content.PublishedAt,
		PublishedRaw: ref.Published,
		Title:        strings.TrimSpace(content.Title),
		Authors:      content.Authors,
		URL:          ref.URL,
		Body:         strings.TrimSpace(content.Body),
	}
	if rec.Title == "" {
		rec.Title = strings.TrimSpace(ref.Title)
	}
	if rec.PublishedAt.IsZero() {
		rec.PublishedAt = ref.PublishedAt
	}
	if rec.PublishedAt.IsZero() {
		if t, ok := extract.ParseDate(ref.Published); ok {
			rec.PublishedAt = t
		}
	}
	if !rec.PublishedAt.IsZero() {
		rec.PublishedAt = rec.PublishedAt.UTC()
	}
	return rec
}

func validLocator(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}
