package comments

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// YouTube lists comment threads through the YouTube Data API v3.
type YouTube struct {
	svc *youtube.Service
}

// NewYouTube creates a client authenticated with an API key. Extra options
// are appended, which lets tests point the client at a local server.
func NewYouTube(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTube, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTube{svc: svc}, nil
}

// List implements Lister.
func (y *YouTube) List(ctx context.Context, videoID, pageToken string, pageSize int64) (Page, error) {
	call := y.svc.CommentThreads.List([]string{"snippet"}).
		VideoId(videoID).
		MaxResults(pageSize).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	resp, err := call.Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusForbidden {
			return Page{}, fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
		}
		return Page{}, fmt.Errorf("comment threads list: %w", err)
	}
	page := Page{NextPageToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
			continue
		}
		sn := item.Snippet.TopLevelComment.Snippet
		page.Comments = append(page.Comments, harvest.Comment{
			VideoID:     videoID,
			Author:      sn.AuthorDisplayName,
			PublishedAt: sn.PublishedAt,
			LikeCount:   sn.LikeCount,
			Text:        sn.TextOriginal,
		})
	}
	return page, nil
}
