// Package feed discovers news articles through a Google News style RSS search.
package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/extract"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/retry"
	"github.com/JakeFAU/topic-harvester/internal/scout"
)

// ErrQueryFailed is returned when every attempt at a feed query failed.
var ErrQueryFailed = errors.New("feed query failed")

// UnknownSource labels entries whose feed item carries no source element.
const UnknownSource = "Unknown"

// Config describes the feed endpoint.
type Config struct {
	BaseURL  string
	Language string
	Country  string
	Limit    int
}

// Scout queries the RSS search endpoint once per keyword.
type Scout struct {
	cfg     Config
	fetcher harvest.Fetcher
	retry   *retry.Policy
	logger  *zap.Logger
}

var _ scout.Scout = (*Scout)(nil)

// New builds a feed Scout. policy is applied per query.
func New(cfg Config, fetcher harvest.Fetcher, policy *retry.Policy, logger *zap.Logger) *Scout {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://news.google.com/rss/search"
	}
	if cfg.Language == "" {
		cfg.Language = "id"
	}
	if cfg.Country == "" {
		cfg.Country = "ID"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scout{cfg: cfg, fetcher: fetcher, retry: policy, logger: logger}
}

// Name implements scout.Scout.
func (s *Scout) Name() string { return "feed" }

// SearchURL builds the feed URL for q.
func (s *Scout) SearchURL(q scout.Query) string {
	query := q.Keyword
	if !q.From.IsZero() {
		query += " after:" + q.From.Format(time.DateOnly)
	}
	if !q.To.IsZero() {
		query += " before:" + q.To.Format(time.DateOnly)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("hl", s.cfg.Language)
	params.Set("gl", s.cfg.Country)
	params.Set("ceid", s.cfg.Country+":"+s.cfg.Language)
	return s.cfg.BaseURL + "?" + params.Encode()
}

// Scout implements scout.Scout.
func (s *Scout) Scout(ctx context.Context, q scout.Query) ([]harvest.ItemReference, error) {
	feedURL := s.SearchURL(q)
	s.logger.Info("searching feed", zap.String("keyword", q.Keyword))
	refs, ok := retry.Do(ctx, s.retry, "feed.search", func(ctx context.Context) ([]harvest.ItemReference, error) {
		doc, err := s.fetcher.Fetch(ctx, feedURL)
		if err != nil {
			return nil, err
		}
		if doc.StatusCode != 0 && doc.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("feed status %d", doc.StatusCode)
		}
		return Parse(doc.HTML, q.Keyword, s.cfg.Limit)
	})
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrQueryFailed, q.Keyword)
	}
	if len(refs) == 0 {
		s.logger.Info("no feed results", zap.String("keyword", q.Keyword))
	}
	return refs, nil
}

// Parse reads at most limit RSS items into references for keyword.
func Parse(data []byte, keyword string, limit int) ([]harvest.ItemReference, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	items := xmlquery.Find(doc, "//channel/item")
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	refs := make([]harvest.ItemReference, 0, len(items))
	for _, item := range items {
		ref := harvest.ItemReference{
			Source:    UnknownSource,
			Keyword:   keyword,
			URL:       childText(item, "link"),
			Title:     childText(item, "title"),
			Published: childText(item, "pubDate"),
		}
		if src := childText(item, "source"); src != "" {
			ref.Source = src
		}
		if t, ok := extract.ParseDate(ref.Published); ok {
			ref.PublishedAt = t
		}
		if ref.URL == "" {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func childText(n *xmlquery.Node, name string) string {
	child := n.SelectElement(name)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}
