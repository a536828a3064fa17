// Package comments collects keyword-relevant comments from a video comment API.
package comments

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
)

// ErrForbidden reports that comments are disabled for a video or the API
// quota is exhausted.
var ErrForbidden = errors.New("comments forbidden")

// Page is one page of top-level comments.
type Page struct {
	Comments      []harvest.Comment
	NextPageToken string
}

// Lister fetches one page of comments for a video.
type Lister interface {
	List(ctx context.Context, videoID, pageToken string, pageSize int64) (Page, error)
}

// Stats summarises a collection pass.
type Stats struct {
	Relevant int
	Skipped  int
}

// Scout pages through every video and keeps the relevant comments.
type Scout struct {
	lister   Lister
	relevant map[string]struct{}
	pageSize int64
	logger   *zap.Logger
}

// New builds a Scout. relevant holds lowercase keywords.
func New(lister Lister, relevant map[string]struct{}, pageSize int64, logger *zap.Logger) *Scout {
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scout{lister: lister, relevant: relevant, pageSize: pageSize, logger: logger}
}

// Relevant reports whether the lowercase whitespace tokens of text intersect
// keywords.
func Relevant(text string, keywords map[string]struct{}) bool {
	for _, token := range strings.Fields(strings.ToLower(text)) {
		if _, ok := keywords[token]; ok {
			return true
		}
	}
	return false
}

// Collect gathers relevant comments from each video in turn. A video whose
// listing fails keeps the comments gathered before the failure.
func (s *Scout) Collect(ctx context.Context, videoIDs []string) ([]harvest.Comment, Stats) {
	var (
		out   []harvest.Comment
		total Stats
	)
	for _, id := range videoIDs {
		if ctx.Err() != nil {
			break
		}
		comments, stats := s.collectVideo(ctx, id)
		out = append(out, comments...)
		total.Relevant += stats.Relevant
		total.Skipped += stats.Skipped
		metrics.ObserveScoutItems("comments", stats.Relevant)
		s.logger.Info("video comments collected",
			zap.String("video_id", id),
			zap.Int("relevant", stats.Relevant),
			zap.Int("skipped", stats.Skipped),
		)
	}
	return out, total
}

func (s *Scout) collectVideo(ctx context.Context, videoID string) ([]harvest.Comment, Stats) {
	var (
		out   []harvest.Comment
		stats Stats
		token string
	)
	for {
		page, err := s.lister.List(ctx, videoID, token, s.pageSize)
		if err != nil {
			if errors.Is(err, ErrForbidden) {
				s.logger.Warn("comments disabled or quota exhausted", zap.String("video_id", videoID), zap.Error(err))
			} else {
				s.logger.Error("listing comments failed", zap.String("video_id", videoID), zap.Error(err))
			}
			return out, stats
		}
		for _, c := range page.Comments {
			if Relevant(c.Text, s.relevant) {
				c.VideoID = videoID
				out = append(out, c)
				stats.Relevant++
			} else {
				stats.Skipped++
			}
		}
		if page.NextPageToken == "" {
			return out, stats
		}
		token = page.NextPageToken
	}
}
