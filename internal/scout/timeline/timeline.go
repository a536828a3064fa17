// Package timeline scrapes posts from a social network's live search by
// logging in once and scrolling each query's result page.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
	"github.com/JakeFAU/topic-harvester/internal/metrics"
	"github.com/JakeFAU/topic-harvester/internal/scout"
)

// ErrLoginFailed is returned when any step of the login flow times out or fails.
var ErrLoginFailed = errors.New("timeline login failed")

// Selectors used by the login flow and the result page. Selectors starting
// with "/" are XPath expressions.
const (
	UsernameField = `input[name="text"]`
	NextButton    = `//span[contains(text(),'Next')]`
	PasswordField = `input[name="password"]`
	LoginButton   = `//span[contains(text(),'Log in')]`
	HomeMarker    = `a[data-testid="SideNav_NewTweet_Button"]`
	ItemSelector  = `article[data-testid="tweet"]`
)

// Item is one rendered post as read from the page.
type Item struct {
	Text      string `json:"text"`
	Username  string `json:"username"`
	Timestamp string `json:"timestamp"`
}

// Page is the narrow browser surface the scout drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Items(ctx context.Context) ([]Item, error)
	ScrollToBottom(ctx context.Context) error
	Height(ctx context.Context) (int64, error)
}

// Config tunes the login flow and the scroll loop.
type Config struct {
	LoginURL    string
	SearchURL   string
	Username    string
	Password    string
	MaxItems    int
	ScrollDelay time.Duration
	Wait        time.Duration
}

// Scout runs queries against a logged-in Page.
type Scout struct {
	cfg    Config
	page   Page
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// New builds a Scout over page.
func New(cfg Config, page Page, logger *zap.Logger) *Scout {
	if cfg.LoginURL == "" {
		cfg.LoginURL = "https://twitter.com/login"
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://twitter.com/search"
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 250
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 20 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scout{cfg: cfg, page: page, sleep: scout.Sleep, logger: logger}
}

type step struct {
	name string
	run  func(ctx context.Context) error
	wait bool
}

// Login walks the username and password form. Every wait step is bounded by
// the configured wait timeout.
func (s *Scout) Login(ctx context.Context) error {
	steps := []step{
		{name: "open login page", run: func(ctx context.Context) error { return s.page.Navigate(ctx, s.cfg.LoginURL) }},
		{name: "wait for username", run: func(ctx context.Context) error { return s.page.WaitFor(ctx, UsernameField) }, wait: true},
		{name: "fill username", run: func(ctx context.Context) error { return s.page.Fill(ctx, UsernameField, s.cfg.Username) }},
		{name: "click next", run: func(ctx context.Context) error { return s.page.Click(ctx, NextButton) }},
		{name: "wait for password", run: func(ctx context.Context) error { return s.page.WaitFor(ctx, PasswordField) }, wait: true},
		{name: "fill password", run: func(ctx context.Context) error { return s.page.Fill(ctx, PasswordField, s.cfg.Password) }},
		{name: "click log in", run: func(ctx context.Context) error { return s.page.Click(ctx, LoginButton) }},
		{name: "wait for home", run: func(ctx context.Context) error { return s.page.WaitFor(ctx, HomeMarker) }, wait: true},
	}
	for _, st := range steps {
		if err := s.runStep(ctx, st); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrLoginFailed, st.name, err)
		}
	}
	s.logger.Info("timeline login succeeded")
	return nil
}

func (s *Scout) runStep(ctx context.Context, st step) error {
	if !st.wait {
		return st.run(ctx)
	}
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.Wait)
	defer cancel()
	return st.run(waitCtx)
}

// SearchURL is the live search page for query.
func (s *Scout) SearchURL(query string) string {
	q := strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	return s.cfg.SearchURL + "?q=" + q + "&src=typed_query&f=live"
}

// Search scrolls one query's results. It stops at MaxItems, when a read after
// a scroll yields nothing new, when the page height stops growing, or when no
// item renders within the wait timeout.
func (s *Scout) Search(ctx context.Context, query string) ([]harvest.Post, error) {
	log := s.logger.With(zap.String("query", query))
	if err := s.page.Navigate(ctx, s.SearchURL(query)); err != nil {
		return nil, fmt.Errorf("open search: %w", err)
	}
	lastHeight, err := s.page.Height(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page height: %w", err)
	}

	seen := make(map[string]struct{})
	var posts []harvest.Post
	for scrolled := false; len(posts) < s.cfg.MaxItems; scrolled = true {
		if err := s.runStep(ctx, step{run: func(ctx context.Context) error { return s.page.WaitFor(ctx, ItemSelector) }, wait: true}); err != nil {
			if ctx.Err() != nil {
				return posts, fmt.Errorf("wait for items: %w", ctx.Err())
			}
			log.Info("no items rendered, ending query", zap.Error(err))
			break
		}
		items, err := s.page.Items(ctx)
		if err != nil {
			return posts, fmt.Errorf("read items: %w", err)
		}
		fresh := 0
		for _, it := range items {
			if it.Text == "" {
				continue
			}
			if _, dup := seen[it.Text]; dup {
				continue
			}
			seen[it.Text] = struct{}{}
			fresh++
			posts = append(posts, harvest.Post{Query: query, Username: it.Username, Timestamp: it.Timestamp, Text: it.Text})
			if len(posts) >= s.cfg.MaxItems {
				break
			}
		}
		if len(posts) >= s.cfg.MaxItems {
			log.Info("item cap reached", zap.Int("cap", s.cfg.MaxItems))
			break
		}
		if scrolled && fresh == 0 {
			log.Info("no new items after scroll")
			break
		}
		log.Debug("scrolling", zap.Int("new", fresh), zap.Int("total", len(posts)))

		if err := s.page.ScrollToBottom(ctx); err != nil {
			return posts, fmt.Errorf("scroll: %w", err)
		}
		if err := s.sleep(ctx, s.cfg.ScrollDelay); err != nil {
			return posts, err
		}
		height, err := s.page.Height(ctx)
		if err != nil {
			return posts, fmt.Errorf("read page height: %w", err)
		}
		if height == lastHeight {
			log.Info("page height unchanged, end of results")
			break
		}
		lastHeight = height
	}
	return posts, nil
}

// Run logs in and searches every query in order, pausing between queries.
// Login failure is fatal; a failed query keeps what it collected and the run
// moves on.
func (s *Scout) Run(ctx context.Context, queries []string, pacer *scout.Pacer) ([]harvest.Post, error) {
	if err := s.Login(ctx); err != nil {
		return nil, err
	}
	var all []harvest.Post
	for i, q := range queries {
		s.logger.Info("timeline query", zap.Int("index", i+1), zap.Int("total", len(queries)), zap.String("query", q))
		posts, err := s.Search(ctx, q)
		if err != nil {
			s.logger.Error("timeline query failed", zap.String("query", q), zap.Error(err))
		}
		metrics.ObserveScoutItems("timeline", len(posts))
		all = append(all, posts...)
		if ctx.Err() != nil {
			return all, fmt.Errorf("timeline run: %w", ctx.Err())
		}
		if i == len(queries)-1 {
			break
		}
		if err := pacer.Pause(ctx); err != nil {
			return all, err
		}
	}
	return all, nil
}
