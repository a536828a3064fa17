package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-harvester/internal/checkpoint"
	"github.com/JakeFAU/topic-harvester/internal/clock/system"
	"github.com/JakeFAU/topic-harvester/internal/dataset"
	"github.com/JakeFAU/topic-harvester/internal/harvest"
	memorypublisher "github.com/JakeFAU/topic-harvester/internal/publisher/memory"
	"github.com/JakeFAU/topic-harvester/internal/scheduler"
	"github.com/JakeFAU/topic-harvester/internal/scout"
	"github.com/JakeFAU/topic-harvester/internal/storage/memory"
)

var fixedClock = system.Fixed{At: time.Date(2025, 6, 15, 9, 30, 0, 0, time.UTC)}

type fakeScout struct {
	refs map[string][]harvest.ItemReference
}

func (f *fakeScout) Name() string { return "fake" }

func (f *fakeScout) Scout(_ context.Context, q scout.Query) ([]harvest.ItemReference, error) {
	refs, ok := f.refs[q.Keyword]
	if !ok {
		return nil, errors.New("feed down")
	}
	return refs, nil
}

type countingProcessor struct {
	mu    sync.Mutex
	calls int
}

func (p *countingProcessor) Process(_ context.Context, ref harvest.ItemReference) (harvest.HarvestedRecord, bool) {
	p.mu.Lock()
	p.calls++
	n := p.calls
	p.mu.Unlock()
	return harvest.HarvestedRecord{
		Keyword:     ref.Keyword,
		Source:      ref.Source,
		URL:         ref.URL,
		Title:       ref.Title,
		Body:        strings.Repeat("isi berita ", 20),
		PublishedAt: ref.PublishedAt,
		Fingerprint: fmt.Sprintf("fp-%d", n),
	}, true
}

type staticIDs struct{}

func (staticIDs) NewID() (string, error) { return "0190a3f2-0000-7000-8000-000000000001", nil }

type memRecords struct {
	runID string
	recs  []harvest.HarvestedRecord
}

func (m *memRecords) StoreRecords(_ context.Context, runID string, recs []harvest.HarvestedRecord) error {
	m.runID, m.recs = runID, recs
	return nil
}

func (m *memRecords) Close() error { return nil }

func ref(kw, source, url string, day int) harvest.ItemReference {
	return harvest.ItemReference{
		Keyword:     kw,
		Source:      source,
		URL:         url,
		Title:       "Judul " + url,
		PublishedAt: time.Date(2025, 6, day, 0, 0, 0, 0, time.UTC),
	}
}

func newTestNews(sc scout.Scout, runner Runner, store harvest.BlobStore, pub harvest.Publisher, recs harvest.RecordStore) *News {
	return NewNews(NewsConfig{
		Keywords: []string{"nikel", "raja ampat"},
		RawDir:   "data/raw",
		Topic:    "datasets",
	}, NewsDeps{
		Scout:     sc,
		Pacer:     &scout.Pacer{Sleep: func(context.Context, time.Duration) error { return nil }},
		Runner:    runner,
		Store:     store,
		Records:   recs,
		Publisher: pub,
		IDs:       staticIDs{},
		Clock:     fixedClock,
	})
}

func TestNewsSameLocatorKeepsFirst(t *testing.T) {
	t.Parallel()

	sc := &fakeScout{refs: map[string][]harvest.ItemReference{
		"nikel":      {ref("nikel", "Kompas", "https://news.test/a", 1), ref("nikel", "Tempo", "https://news.test/b", 3)},
		"raja ampat": {ref("raja ampat", "Detik", "https://news.test/a", 2)},
	}}
	proc := &countingProcessor{}
	store := memory.NewBlobStore()
	sched := scheduler.New(scheduler.Config{BatchSize: 10, Workers: 3, TaskTimeout: time.Second},
		proc, checkpoint.New(store, "data/raw", fixedClock, nil), nil, fixedClock, nil)
	pub := memorypublisher.New()
	recs := &memRecords{}

	res, err := newTestNews(sc, sched, store, pub, recs).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.References)
	assert.Equal(t, 2, proc.calls)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "https://news.test/b", res.Records[0].URL, "newest first")
	assert.Equal(t, "Kompas", res.Records[1].Source, "first reference for a locator wins")

	assert.Equal(t, []string{"memory://data/raw/hasil_crawling_portal_berita.csv", "memory://data/raw/hasil_crawling_portal_berita.xlsx"}, res.URIs)
	data, ok := store.Get("data/raw/hasil_crawling_portal_berita.csv")
	require.True(t, ok)
	table, err := dataset.ReadCSV(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, dataset.NewsHeader, table.Header)
	assert.Len(t, table.Rows, 2)

	assert.Equal(t, res.RunID, recs.runID)
	assert.Len(t, recs.recs, 2)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "datasets", msgs[0].Topic)
	var evt harvest.DatasetReady
	require.NoError(t, json.Unmarshal(msgs[0].Data, &evt))
	assert.Equal(t, "news", evt.Stage)
	assert.Equal(t, 2, evt.Records)

	assert.Equal(t, []dataset.Count{{Key: "Kompas", Count: 1}, {Key: "Tempo", Count: 1}}, res.BySource)
	assert.Equal(t, []dataset.Count{{Key: "nikel", Count: 2}}, res.ByKeyword)
}

type duplicateRunner struct{}

func (duplicateRunner) Run(_ context.Context, _ string, refs []harvest.ItemReference) ([]harvest.HarvestedRecord, harvest.RunStats) {
	r := refs[0]
	return []harvest.HarvestedRecord{
		{URL: r.URL, Source: "first", Fingerprint: "fp-1", Title: "a", PublishedAt: r.PublishedAt},
		{URL: r.URL, Source: "second", Fingerprint: "fp-2", Title: "b", PublishedAt: r.PublishedAt.Add(time.Hour)},
	}, harvest.RunStats{Attempted: 2, Succeeded: 2}
}

func TestNewsFinalDedupIgnoresFingerprintDifference(t *testing.T) {
	t.Parallel()

	sc := &fakeScout{refs: map[string][]harvest.ItemReference{
		"nikel":      {ref("nikel", "Kompas", "https://news.test/a", 1)},
		"raja ampat": {},
	}}
	res, err := newTestNews(sc, duplicateRunner{}, memory.NewBlobStore(), nil, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "first", res.Records[0].Source)
}

func TestNewsNothingFound(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	sc := &fakeScout{refs: map[string][]harvest.ItemReference{"raja ampat": nil}}
	res, err := newTestNews(sc, duplicateRunner{}, store, nil, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.References)
	assert.Empty(t, store.Paths())
}

// cancellingScout answers every keyword and cancels the run after the first.
type cancellingScout struct {
	fakeScout
	cancel context.CancelFunc
}

func (c *cancellingScout) Scout(ctx context.Context, q scout.Query) ([]harvest.ItemReference, error) {
	defer c.cancel()
	return c.fakeScout.Scout(ctx, q)
}

type echoRunner struct {
	got []harvest.ItemReference
}

func (r *echoRunner) Run(_ context.Context, _ string, refs []harvest.ItemReference) ([]harvest.HarvestedRecord, harvest.RunStats) {
	r.got = refs
	recs := make([]harvest.HarvestedRecord, 0, len(refs))
	for i, ref := range refs {
		recs = append(recs, harvest.HarvestedRecord{
			Keyword:     ref.Keyword,
			Source:      ref.Source,
			URL:         ref.URL,
			Title:       ref.Title,
			Body:        "isi berita",
			PublishedAt: ref.PublishedAt,
			Fingerprint: fmt.Sprintf("fp-%d", i),
		})
	}
	return recs, harvest.RunStats{Attempted: len(refs), Succeeded: len(refs)}
}

func TestNewsKeepsPartialReferencesWhenDiscoveryIsCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sc := &cancellingScout{
		fakeScout: fakeScout{refs: map[string][]harvest.ItemReference{
			"nikel":      {ref("nikel", "Kompas", "https://news.test/a", 1), ref("nikel", "Tempo", "https://news.test/b", 2)},
			"raja ampat": {ref("raja ampat", "Detik", "https://news.test/c", 3)},
		}},
		cancel: cancel,
	}
	runner := &echoRunner{}
	store := memory.NewBlobStore()
	pub := memorypublisher.New()
	news := NewNews(NewsConfig{
		Keywords: []string{"nikel", "raja ampat"},
		RawDir:   "data/raw",
		Topic:    "datasets",
	}, NewsDeps{
		Scout:     sc,
		Pacer:     &scout.Pacer{Sleep: func(ctx context.Context, _ time.Duration) error { return ctx.Err() }},
		Runner:    runner,
		Store:     store,
		Publisher: pub,
		IDs:       staticIDs{},
		Clock:     fixedClock,
	})

	res, err := news.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 2, res.References)
	assert.Len(t, runner.got, 2)
	assert.Len(t, res.Records, 2)
	assert.Len(t, res.URIs, 2)
	_, ok := store.Get("data/raw/hasil_crawling_portal_berita.csv")
	assert.True(t, ok)
	assert.Len(t, pub.Messages(), 1)
}

func TestRawSinkSavesDatedFiles(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	pub := memorypublisher.New()
	sink := RawSink{Store: store, Publisher: pub, Topic: "datasets", Dir: "data/raw", Clock: fixedClock, IDs: staticIDs{}}

	uri, err := sink.SavePosts(context.Background(), "hasil_crawling_twitter_multi", []harvest.Post{
		{Query: "nikel", Username: "@a", Timestamp: "2025-06-10T00:00:00.000Z", Text: "tolak tambang"},
	})
	require.NoError(t, err)
	assert.Equal(t, "memory://data/raw/hasil_crawling_twitter_multi_20250615.csv", uri)

	uri, err = sink.SaveComments(context.Background(), "hasil_crawling_youtube_filtered", nil)
	require.NoError(t, err)
	assert.Empty(t, uri)

	assert.Equal(t, []string{"data/raw/hasil_crawling_twitter_multi_20250615.csv"}, store.Paths())
	require.Len(t, pub.Messages(), 1)
	assert.Equal(t, "timeline", pub.Messages()[0].Attributes["stage"])
}
