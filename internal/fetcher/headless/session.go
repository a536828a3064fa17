// Package headless implements browser-backed fetching and sessions using chromedp.
package headless

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
)

// SessionConfig controls how a browser process is launched.
type SessionConfig struct {
	UserAgent     string
	Headful       bool
	DisableImages bool
	ExecPath      string
	WindowWidth   int
	WindowHeight  int
}

// Session owns one browser process and its first tab. A Session is not shared
// between concurrent users; Close tears down the tab and the process.
type Session struct {
	ctx       context.Context
	cancelTab context.CancelFunc
	cancelCtx context.CancelFunc
	closeOnce sync.Once
}

// NewSession launches a browser bound to parent. Cancelling parent kills the
// process even if Close is never called.
func NewSession(parent context.Context, cfg SessionConfig) (*Session, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocatorOptions(cfg)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Session{ctx: tabCtx, cancelTab: cancelTab, cancelCtx: cancelAlloc}, nil
}

// Run executes actions on the session tab. The call is bounded by ctx's
// deadline and aborted when ctx is cancelled; the tab itself survives.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("browser run: %w", ctxErr)
		}
		return fmt.Errorf("browser run: %w", err)
	}
	return nil
}

// Listen registers fn for every target event of the session tab.
func (s *Session) Listen(fn func(ev any)) {
	chromedp.ListenTarget(s.ctx, fn)
}

// Close releases the tab and terminates the browser process.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelCtx()
	})
}

func allocatorOptions(cfg SessionConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if cfg.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	return opts
}
