// Package auto combines a static and a headless fetcher, rendering only the
// pages a plain GET cannot serve.
package auto

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// Fetcher tries Static first and falls back to Headless.
type Fetcher struct {
	Static   harvest.Fetcher
	Headless harvest.Fetcher
	Promoter Promoter
	Logger   *zap.Logger
}

// New wires a promoting fetcher.
func New(static, headless harvest.Fetcher, promoter Promoter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{Static: static, Headless: headless, Promoter: promoter, Logger: logger}
}

// Fetch implements harvest.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.RawDocument, error) {
	doc, err := f.Static.Fetch(ctx, url)
	if err == nil && !f.Promoter.ShouldPromote(doc) {
		return doc, nil
	}
	if ctx.Err() != nil {
		return harvest.RawDocument{}, fmt.Errorf("static fetch: %w", ctx.Err())
	}
	f.Logger.Debug("promoting to headless",
		zap.String("url", url),
		zap.Int("static_status", doc.StatusCode),
		zap.Int("static_bytes", len(doc.HTML)),
		zap.Error(err),
	)
	rendered, herr := f.Headless.Fetch(ctx, url)
	if herr != nil {
		if err != nil {
			return harvest.RawDocument{}, fmt.Errorf("static: %v; headless: %w", err, herr)
		}
		return harvest.RawDocument{}, herr
	}
	return rendered, nil
}
