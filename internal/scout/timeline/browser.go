package timeline

import (
	"context"
	"strings"

	"github.com/chromedp/chromedp"

	"github.com/JakeFAU/topic-harvester/internal/fetcher/headless"
)

const itemsScript = `Array.from(document.querySelectorAll('article[data-testid="tweet"]')).map(a => {
  const text = a.querySelector('div[data-testid="tweetText"]');
  const user = a.querySelector('div[data-testid="User-Name"] span');
  const time = a.querySelector('time');
  return {
    text: text ? text.innerText : "",
    username: user ? user.innerText : "",
    timestamp: time ? (time.getAttribute("datetime") || "") : ""
  };
})`

// BrowserPage drives a headless.Session.
type BrowserPage struct {
	session *headless.Session
}

var _ Page = (*BrowserPage)(nil)

// NewBrowserPage wraps an open session. The caller keeps ownership of it.
func NewBrowserPage(session *headless.Session) *BrowserPage {
	return &BrowserPage{session: session}
}

func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "/") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

// Navigate implements Page.
func (p *BrowserPage) Navigate(ctx context.Context, url string) error {
	return p.session.Run(ctx, chromedp.Navigate(url))
}

// WaitFor implements Page.
func (p *BrowserPage) WaitFor(ctx context.Context, selector string) error {
	return p.session.Run(ctx, chromedp.WaitReady(selector, queryOption(selector)))
}

// Fill implements Page.
func (p *BrowserPage) Fill(ctx context.Context, selector, value string) error {
	return p.session.Run(ctx, chromedp.SendKeys(selector, value, queryOption(selector)))
}

// Click implements Page.
func (p *BrowserPage) Click(ctx context.Context, selector string) error {
	return p.session.Run(ctx, chromedp.Click(selector, queryOption(selector)))
}

// Items implements Page.
func (p *BrowserPage) Items(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := p.session.Run(ctx, chromedp.Evaluate(itemsScript, &items)); err != nil {
		return nil, err
	}
	return items, nil
}

// ScrollToBottom implements Page.
func (p *BrowserPage) ScrollToBottom(ctx context.Context) error {
	var ok bool
	return p.session.Run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, &ok))
}

// Height implements Page.
func (p *BrowserPage) Height(ctx context.Context) (int64, error) {
	var h int64
	if err := p.session.Run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &h)); err != nil {
		return 0, err
	}
	return h, nil
}
