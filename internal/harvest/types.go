package harvest

import (
	"time"
)

// ItemReference is a discovered but not yet fetched content item.
type ItemReference struct {
	// Source names the publisher reported by the discovery feed.
	Source string `json:"source"`
	// Keyword is the query that surfaced the item.
	Keyword string `json:"keyword"`
	// URL is the unique locator of the item.
	URL string `json:"url"`
	// Title and Published are provisional values from the feed entry.
	Title       string    `json:"title"`
	Published   string    `json:"published"`
	PublishedAt time.Time `json:"published_at"`
}

// HarvestedRecord is the fetched, extracted and validated form of an ItemReference.
type HarvestedRecord struct {
	Keyword      string    `json:"keyword"`
	Source       string    `json:"source"`
	PublishedAt  time.Time `json:"published_at"`
	PublishedRaw string    `json:"published_raw,omitempty"`
	Title        string    `json:"title"`
	Authors      []string  `json:"authors,omitempty"`
	URL          string    `json:"url"`
	Body         string    `json:"body"`
	Fingerprint  string    `json:"fingerprint"`
}

// RawDocument is what a Fetcher returns for a single locator.
type RawDocument struct {
	URL          string
	FinalURL     string
	StatusCode   int
	HTML         []byte
	FetchedAt    time.Time
	Duration     time.Duration
	UsedHeadless bool
}

// Content is the structured view of a RawDocument produced by an Extractor.
type Content struct {
	Title       string
	Authors     []string
	Body        string
	PublishedAt time.Time
}

// Post is a raw record collected from a social timeline.
type Post struct {
	Query     string `json:"keyword_pencarian"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// Comment is a raw record collected from a video comment API.
type Comment struct {
	VideoID     string `json:"video_id"`
	Author      string `json:"penulis"`
	PublishedAt string `json:"tanggal"`
	LikeCount   int64  `json:"like_count"`
	Text        string `json:"teks"`
}

// Sentiment labels assigned by the labeling stage.
const (
	Positive = "Positif"
	Negative = "Negatif"
	Neutral  = "Netral"
)

// LabeledRow is one row of the processed dataset.
type LabeledRow struct {
	Source      string `json:"sumber"`
	PublishedAt string `json:"tanggal_publikasi"`
	Text        string `json:"teks"`
	CleanText   string `json:"teks_bersih"`
	Sentiment   string `json:"sentimen"`
}

// RunStats summarises a scheduler run.
type RunStats struct {
	Batches     int `json:"batches"`
	Attempted   int `json:"attempted"`
	Succeeded   int `json:"succeeded"`
	Dropped     int `json:"dropped"`
	TimedOut    int `json:"timed_out"`
	Checkpoints int `json:"checkpoints"`
}

// DatasetReady announces a dataset written by one stage of a run.
type DatasetReady struct {
	RunID     string    `json:"run_id"`
	Stage     string    `json:"stage"`
	URIs      []string  `json:"uris"`
	Records   int       `json:"records"`
	CreatedAt time.Time `json:"created_at"`
}

// Attributes are attached to the notification as message metadata.
func (d DatasetReady) Attributes() map[string]string {
	return map[string]string{
		"event":  "dataset.ready",
		"stage":  d.Stage,
		"run_id": d.RunID,
	}
}
