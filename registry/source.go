package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"time"
)

// Source retrieves the HTML of a registry page. BrowserSource sees the
// script-rendered DOM; StaticSource sees only the raw markup and misses
// rows that require script execution to appear.
type Source interface {
	Name() string
	Fetch(ctx context.Context, url string) (string, error)
}

// browserUserAgent keeps the registry from serving the bot error page.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// StaticSource fetches pages with a plain HTTP GET.
type StaticSource struct {
	client *http.Client
}

// NewStaticSource creates a static page source. A zero timeout defaults
// to 30 seconds.
func NewStaticSource(timeout time.Duration) *StaticSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &StaticSource{client: &http.Client{Timeout: timeout}}
}

func (s *StaticSource) Name() string { return "static" }

func (s *StaticSource) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading page body: %w", err)
	}
	return string(body), nil
}

// browserBinaries are probed, in order, to decide whether headless
// browsing is available in this environment.
var browserBinaries = []string{
	"google-chrome",
	"google-chrome-stable",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"chrome",
}

// findBrowser returns the path of an installed browser binary, or "".
func findBrowser() string {
	for _, name := range browserBinaries {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}

// NewSource selects a page source by capability: headless browser when
// enabled and a binary is installed, static parsing otherwise. Falling
// back is a warning, not an error; listings just lose fidelity.
func NewSource(browserEnabled bool, timeout time.Duration) Source {
	if browserEnabled {
		if path := findBrowser(); path != "" {
			return NewBrowserSource(path, timeout)
		}
		slog.Warn("registry: no browser binary found, falling back to static parsing")
	}
	return NewStaticSource(timeout)
}
