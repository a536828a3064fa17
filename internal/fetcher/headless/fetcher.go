package headless

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/topic-harvester/internal/harvest"
)

// ErrInvalidURL is returned for locators that are not absolute http(s) URLs.
var ErrInvalidURL = errors.New("headless: url must be absolute http(s)")

// Config controls headless fetch behavior.
type Config struct {
	Session           SessionConfig
	PageLoadTimeout   time.Duration
	SettleMin         time.Duration
	SettleMax         time.Duration
	DisableJavaScript bool
}

// Fetcher renders pages in a fresh browser session per call.
type Fetcher struct {
	cfg     Config
	jitter  func(n int64) int64
	clock   func() time.Time
	startFn func(ctx context.Context, cfg SessionConfig) (runner, error)
}

// runner is the subset of Session used by Fetch.
type runner interface {
	Run(ctx context.Context, actions ...chromedp.Action) error
	Listen(fn func(ev any))
	Close()
}

// New validates cfg and builds a Fetcher.
func New(cfg Config) (*Fetcher, error) {
	if cfg.SettleMin < 0 || cfg.SettleMax < cfg.SettleMin {
		return nil, fmt.Errorf("headless: invalid settle window %s..%s", cfg.SettleMin, cfg.SettleMax)
	}
	if cfg.PageLoadTimeout <= 0 {
		cfg.PageLoadTimeout = 30 * time.Second
	}
	return &Fetcher{
		cfg:    cfg,
		jitter: rand.Int64N,
		clock:  time.Now,
		startFn: func(ctx context.Context, sc SessionConfig) (runner, error) {
			return NewSession(ctx, sc)
		},
	}, nil
}

// Fetch navigates to rawURL, waits for the page to settle and returns the
// rendered HTML. The browser is released before Fetch returns.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (harvest.RawDocument, error) {
	if err := checkURL(rawURL); err != nil {
		return harvest.RawDocument{}, err
	}
	start := f.clock()
	session, err := f.startFn(ctx, f.cfg.Session)
	if err != nil {
		return harvest.RawDocument{}, err
	}
	defer session.Close()

	meta := newResponseMeta()
	session.Listen(meta.captureEvent)

	navCtx, cancel := context.WithTimeout(ctx, f.cfg.PageLoadTimeout)
	defer cancel()
	if err := session.Run(navCtx, f.setupAction(), chromedp.Navigate(rawURL), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return harvest.RawDocument{}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}

	var finalURL, html string
	if err := session.Run(ctx,
		chromedp.Sleep(f.settleDelay()),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return harvest.RawDocument{}, fmt.Errorf("capture %s: %w", rawURL, err)
	}

	status, finalURL := meta.snapshotWithFallbacks(rawURL, finalURL)
	return harvest.RawDocument{
		URL:          rawURL,
		FinalURL:     finalURL,
		StatusCode:   status,
		HTML:         []byte(html),
		FetchedAt:    start.UTC(),
		Duration:     f.clock().Sub(start),
		UsedHeadless: true,
	}, nil
}

func (f *Fetcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network: %w", err)
		}
		if f.cfg.DisableJavaScript {
			if err := emulation.SetScriptExecutionDisabled(true).Do(ctx); err != nil {
				return fmt.Errorf("disable scripts: %w", err)
			}
		}
		return nil
	})
}

// settleDelay returns a uniformly random pause within the settle window.
func (f *Fetcher) settleDelay() time.Duration {
	span := int64(f.cfg.SettleMax - f.cfg.SettleMin)
	if span <= 0 {
		return f.cfg.SettleMin
	}
	return f.cfg.SettleMin + time.Duration(f.jitter(span+1))
}

func checkURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
