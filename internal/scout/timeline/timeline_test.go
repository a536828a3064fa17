package timeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-harvester/internal/scout"
)

type fakePage struct {
	heights  []int64
	reads    [][]Item
	missing  map[string]bool
	calls    []string
	filled   map[string]string
	waitErr  error
	readIdx  int
	heightIx int
}

func (f *fakePage) record(call string) { f.calls = append(f.calls, call) }

func (f *fakePage) Navigate(_ context.Context, url string) error {
	f.record("navigate " + url)
	return nil
}

func (f *fakePage) WaitFor(ctx context.Context, selector string) error {
	f.record("wait " + selector)
	if f.missing[selector] {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.waitErr
}

func (f *fakePage) Fill(_ context.Context, selector, value string) error {
	f.record("fill " + selector)
	if f.filled == nil {
		f.filled = map[string]string{}
	}
	f.filled[selector] = value
	return nil
}

func (f *fakePage) Click(_ context.Context, selector string) error {
	f.record("click " + selector)
	return nil
}

func (f *fakePage) Items(context.Context) ([]Item, error) {
	f.record("items")
	if f.readIdx >= len(f.reads) {
		return f.reads[len(f.reads)-1], nil
	}
	out := f.reads[f.readIdx]
	f.readIdx++
	return out, nil
}

func (f *fakePage) ScrollToBottom(context.Context) error {
	f.record("scroll")
	return nil
}

func (f *fakePage) Height(context.Context) (int64, error) {
	f.record("height")
	if f.heightIx >= len(f.heights) {
		return f.heights[len(f.heights)-1], nil
	}
	h := f.heights[f.heightIx]
	f.heightIx++
	return h, nil
}

func (f *fakePage) count(call string) int {
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func items(texts ...string) []Item {
	out := make([]Item, 0, len(texts))
	for _, t := range texts {
		out = append(out, Item{Text: t, Username: "@warga", Timestamp: "2025-06-10T08:00:00.000Z"})
	}
	return out
}

func newTestScout(page Page, cfg Config) *Scout {
	s := New(cfg, page, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

func TestSearchStopsWhenHeightUnchanged(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		heights: []int64{1200, 1200},
		reads:   [][]Item{items("a", "b"), items("c")},
	}
	s := newTestScout(page, Config{ScrollDelay: 15 * time.Second})

	posts, err := s.Search(context.Background(), "nikel raja ampat")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, 1, page.count("items"), "no read after the stalled scroll")
	assert.Equal(t, 1, page.count("scroll"))
	assert.Equal(t, 2, page.count("height"))
	assert.Equal(t, "nikel raja ampat", posts[0].Query)
}

func TestSearchStopsWhenNothingNew(t *testing.T) {
	t.Parallel()

	page := &fakePage{
		heights: []int64{1000, 2000, 3000},
		reads:   [][]Item{items("a", "b"), items("a", "b", "c"), items("b", "c")},
	}
	s := newTestScout(page, Config{})

	posts, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Equal(t, 3, page.count("items"))
	assert.Equal(t, 2, page.count("scroll"))
}

func TestSearchHonoursCap(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int64{1000}, reads: [][]Item{items("a", "b", "c", "d")}}
	s := newTestScout(page, Config{MaxItems: 3})

	posts, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Zero(t, page.count("scroll"))
}

func TestSearchSkipsBlankAndDuplicateText(t *testing.T) {
	t.Parallel()

	read := append(items("a", "", "a"), Item{Text: "b", Username: "@lain"})
	page := &fakePage{heights: []int64{1000, 1000}, reads: [][]Item{read}}
	s := newTestScout(page, Config{})

	posts, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "a", posts[0].Text)
	assert.Equal(t, "@lain", posts[1].Username)
}

func TestSearchEndsWhenNoItemsRender(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int64{1000}, missing: map[string]bool{ItemSelector: true}}
	s := newTestScout(page, Config{Wait: 10 * time.Millisecond})

	posts, err := s.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Zero(t, page.count("items"))
}

func TestSearchURL(t *testing.T) {
	t.Parallel()

	s := New(Config{}, &fakePage{}, nil)
	assert.Equal(t,
		"https://twitter.com/search?q=tambang%20nikel%20%23SaveRajaAmpat&src=typed_query&f=live",
		s.SearchURL("tambang nikel #SaveRajaAmpat"))
}

func TestLoginSequence(t *testing.T) {
	t.Parallel()

	page := &fakePage{}
	s := newTestScout(page, Config{Username: "user", Password: "secret", LoginURL: "https://x.test/login"})

	require.NoError(t, s.Login(context.Background()))
	assert.Equal(t, []string{
		"navigate https://x.test/login",
		"wait " + UsernameField,
		"fill " + UsernameField,
		"click " + NextButton,
		"wait " + PasswordField,
		"fill " + PasswordField,
		"click " + LoginButton,
		"wait " + HomeMarker,
	}, page.calls)
	assert.Equal(t, "user", page.filled[UsernameField])
	assert.Equal(t, "secret", page.filled[PasswordField])
}

func TestLoginTimeout(t *testing.T) {
	t.Parallel()

	page := &fakePage{missing: map[string]bool{HomeMarker: true}}
	s := newTestScout(page, Config{Wait: 10 * time.Millisecond})

	err := s.Login(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLoginFailed))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunStopsOnLoginFailure(t *testing.T) {
	t.Parallel()

	page := &fakePage{waitErr: fmt.Errorf("no such element")}
	s := newTestScout(page, Config{})

	posts, err := s.Run(context.Background(), []string{"a", "b"}, scout.NewPacer(0, 0))
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Empty(t, posts)
	assert.Zero(t, page.count("items"))
}

func TestRunPausesBetweenQueries(t *testing.T) {
	t.Parallel()

	page := &fakePage{heights: []int64{1000}, reads: [][]Item{items("x")}}
	s := newTestScout(page, Config{})
	pauses := 0
	pacer := &scout.Pacer{Sleep: func(context.Context, time.Duration) error {
		pauses++
		return nil
	}}

	posts, err := s.Run(context.Background(), []string{"a", "b", "c"}, pacer)
	require.NoError(t, err)
	assert.Equal(t, 2, pauses)
	require.Len(t, posts, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{posts[0].Query, posts[1].Query, posts[2].Query})
}
