package browser

import (
	"context"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

// Session is the set of browser operations the harvester depends on.
// It exists so the extraction logic can be exercised against a fake
// without a running Chrome.
type Session interface {
	Navigate(url string) error
	// WaitReady blocks until the current document has finished loading.
	WaitReady() error
	WaitVisible(selector string, timeout time.Duration) error
	Fill(selector, value string) error
	Click(selector string) error
	// WaitURL polls until the current location matches pattern. Patterns
	// beginning with "http" must prefix-match; anything else must be
	// contained in the location.
	WaitURL(pattern string, timeout time.Duration) error
	// Evaluate runs script in the page and unmarshals its JSON-compatible
	// result into out.
	Evaluate(script string, out any) error
	// Cookies returns all cookies visible to the browser context, not just
	// the current page's domain.
	Cookies() ([]*network.Cookie, error)
	Location() (string, error)
	Screenshot() ([]byte, error)
	Close()
}

var _ Session = (*ChromeSession)(nil)

// ChromeSession drives a real Chrome instance via chromedp. One session
// owns one browser process; Close must be called on every exit path or
// the process leaks.
type ChromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// NewChromeSession launches a browser and returns a live session.
func NewChromeSession(ctx context.Context, headless bool) (*ChromeSession, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, Options(headless)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &ChromeSession{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
	}

	// Start the browser process now so a launch failure surfaces here
	// rather than on the first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

// Close shuts down the browser process.
func (s *ChromeSession) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

func (s *ChromeSession) Navigate(url string) error {
	return chromedp.Run(s.ctx, chromedp.Navigate(url))
}

func (s *ChromeSession) WaitReady() error {
	return chromedp.Run(s.ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *ChromeSession) WaitVisible(selector string, timeout time.Duration) error {
	tctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(tctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Fill types value into the field so the page sees real input events;
// JS-heavy login forms ignore programmatic value sets.
func (s *ChromeSession) Fill(selector, value string) error {
	return chromedp.Run(s.ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *ChromeSession) Click(selector string) error {
	return chromedp.Run(s.ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (s *ChromeSession) WaitURL(pattern string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		url, err := s.Location()
		if err == nil && matchURL(url, pattern) {
			return nil
		}

		if time.Now().After(deadline) {
			return context.DeadlineExceeded
		}

		select {
		case <-ticker.C:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}
}

func matchURL(url, pattern string) bool {
	if strings.HasPrefix(pattern, "http") {
		return strings.HasPrefix(url, pattern)
	}
	return strings.Contains(url, pattern)
}

func (s *ChromeSession) Evaluate(script string, out any) error {
	return chromedp.Run(s.ctx, chromedp.Evaluate(script, out))
}

func (s *ChromeSession) Cookies() ([]*network.Cookie, error) {
	var cookies []*network.Cookie

	err := chromedp.Run(s.ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			cookies, err = storage.GetCookies().Do(ctx)
			return err
		}),
	)

	return cookies, err
}

func (s *ChromeSession) Location() (string, error) {
	var url string
	err := chromedp.Run(s.ctx, chromedp.Location(&url))
	return url, err
}

func (s *ChromeSession) Screenshot() ([]byte, error) {
	var buf []byte

	err := chromedp.Run(s.ctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().Do(ctx)
			return err
		}),
	)

	return buf, err
}
