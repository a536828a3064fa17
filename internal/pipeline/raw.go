package pipeline

import (
	"context"
	"fmt"
	"path"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// DatedPath is dir/name_YYYYMMDD.csv for the given day.
func DatedPath(dir, name string, day time.Time) string {
	return path.Join(dir, fmt.Sprintf("%s_%s.csv", name, day.Format("20060102")))
}

// RawSink stores the raw outputs of the timeline and comment scouts.
type RawSink struct {
	Store     harvest.BlobStore
	Publisher harvest.Publisher
	Topic     string
	Dir       string
	Clock     harvest.Clock
	IDs       harvest.IDGenerator
	Logger    *zap.Logger
}

// SavePosts writes posts under PostHeader. Nothing is written for no posts.
func (s RawSink) SavePosts(ctx context.Context, name string, posts []harvest.Post) (string, error) {
	return s.save(ctx, "timeline", name, len(posts), dataset.PostsTable(posts))
}

// SaveComments writes comments under CommentHeader, newest first.
func (s RawSink) SaveComments(ctx context.Context, name string, comments []harvest.Comment) (string, error) {
	return s.save(ctx, "comments", name, len(comments), dataset.CommentsTable(comments))
}

func (s RawSink) save(ctx context.Context, stage, name string, n int, table dataset.Table) (string, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if n == 0 {
		log.Warn("nothing collected, no file written", zap.String("stage", stage))
		return "", nil
	}
	now := s.Clock.Now()
	uri, err := dataset.Put(ctx, s.Store, DatedPath(s.Dir, name, now), table)
	if err != nil {
		return "", fmt.Errorf("store %s output: %w", stage, err)
	}
	log.Info("raw output written", zap.String("stage", stage), zap.String("uri", uri), zap.Int("rows", n))

	runID := ""
	if s.IDs != nil {
		if id, err := s.IDs.NewID(); err == nil {
			runID = id
		}
	}
	announce(ctx, s.Publisher, s.Topic, harvest.DatasetReady{
		RunID:     runID,
		Stage:     stage,
		URIs:      []string{uri},
		Records:   n,
		CreatedAt: now.UTC(),
	}, log)
	return uri, nil
}
