package dataset

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/topic-harvester/internal/dedup"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// TimeLayout renders publication times in datasets, always in UTC.
const TimeLayout = time.DateTime

// Column headers of the raw outputs.
var (
	NewsHeader       = []string{"keyword_pencarian", "sumber", "tanggal_publikasi", "judul", "penulis", "url", "teks_berita"}
	CheckpointHeader = append(slices.Clone(NewsHeader), "content_hash")
	PostHeader       = []string{"keyword_pencarian", "username", "timestamp", "text"}
	CommentHeader    = []string{"video_id", "penulis", "tanggal", "like_count", "teks"}
)

// FormatTime renders t in UTC, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

// RecordsTable lays records out under NewsHeader, adding the fingerprint
// column when withFingerprint is set.
func RecordsTable(recs []harvest.HarvestedRecord, withFingerprint bool) Table {
	header := NewsHeader
	if withFingerprint {
		header = CheckpointHeader
	}
	t := Table{Header: slices.Clone(header), Rows: make([][]string, 0, len(recs))}
	for _, r := range recs {
		row := []string{
			r.Keyword,
			r.Source,
			FormatTime(r.PublishedAt),
			r.Title,
			strings.Join(r.Authors, ", "),
			r.URL,
			r.Body,
		}
		if withFingerprint {
			row = append(row, r.Fingerprint)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Finalize deduplicates recs and sorts them by publication time, newest
// first. Records without a time sort last; ties keep their input order.
func Finalize(recs []harvest.HarvestedRecord) []harvest.HarvestedRecord {
	out := dedup.Records(recs)
	slices.SortStableFunc(out, func(a, b harvest.HarvestedRecord) int {
		switch {
		case a.PublishedAt.IsZero() && b.PublishedAt.IsZero():
			return 0
		case a.PublishedAt.IsZero():
			return 1
		case b.PublishedAt.IsZero():
			return -1
		}
		return b.PublishedAt.Compare(a.PublishedAt)
	})
	return out
}

// PostsTable lays timeline posts out under PostHeader.
func PostsTable(posts []harvest.Post) Table {
	t := Table{Header: slices.Clone(PostHeader), Rows: make([][]string, 0, len(posts))}
	for _, p := range posts {
		t.Rows = append(t.Rows, []string{p.Query, p.Username, p.Timestamp, p.Text})
	}
	return t
}

// CommentsTable lays comments out under CommentHeader, newest first.
func CommentsTable(comments []harvest.Comment) Table {
	sorted := slices.Clone(comments)
	slices.SortStableFunc(sorted, func(a, b harvest.Comment) int {
		return cmp.Compare(commentTime(b).UnixNano(), commentTime(a).UnixNano())
	})
	t := Table{Header: slices.Clone(CommentHeader), Rows: make([][]string, 0, len(sorted))}
	for _, c := range sorted {
		t.Rows = append(t.Rows, []string{c.VideoID, c.Author, c.PublishedAt, strconv.FormatInt(c.LikeCount, 10), c.Text})
	}
	return t
}

func commentTime(c harvest.Comment) time.Time {
	t, err := time.Parse(time.RFC3339, c.PublishedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Count is one bucket of a frequency summary.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CountBy tallies key(item) over items, largest first (ties by key), keeping
// at most limit buckets when limit > 0.
func CountBy[T any](items []T, key func(T) string, limit int) []Count {
	tally := make(map[string]int)
	for _, item := range items {
		tally[key(item)]++
	}
	out := make([]Count, 0, len(tally))
	for k, n := range tally {
		out = append(out, Count{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
