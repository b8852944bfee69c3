package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserSource renders pages in a headless browser so script-driven
// content (the document table, the populated record inputs) is present
// in the HTML it returns. The browser is launched and torn down per
// fetch; there is no session reuse across requests.
type BrowserSource struct {
	execPath string
	timeout  time.Duration
}

// renderSettle is how long the page gets after load for its AJAX
// content to land before the DOM is captured.
const renderSettle = 4 * time.Second

// NewBrowserSource creates a headless-browser page source using the
// browser binary at execPath. A zero timeout defaults to 60 seconds.
func NewBrowserSource(execPath string, timeout time.Duration) *BrowserSource {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &BrowserSource{execPath: execPath, timeout: timeout}
}

func (s *BrowserSource) Name() string { return "browser" }

func (s *BrowserSource) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(s.execPath),
		chromedp.UserAgent(browserUserAgent),
		chromedp.NoSandbox,
	)
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(renderSettle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("rendering %s: %w", url, err)
	}
	return html, nil
}
