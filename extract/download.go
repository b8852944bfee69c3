package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Downloader fetches document payloads from the registry's download
// endpoint. One GET per document, redirects followed, no retries.
type Downloader struct {
	client    *http.Client
	userAgent string
}

// minPayloadSize filters out tiny error pages served with a 200 status
// when a document is missing.
const minPayloadSize = 1000

// NewDownloader creates a downloader. A zero timeout defaults to 60
// seconds per document.
func NewDownloader(timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Downloader{
		client:    &http.Client{Timeout: timeout},
		userAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
	}
}

// Download fetches a document and returns its bytes and Content-Type.
func (d *Downloader) Download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("downloading %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", url, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if !plausibleDocument(contentType, url, data) {
		return nil, "", fmt.Errorf("downloading %s: response does not look like a document (%d bytes, %s)",
			url, len(data), contentType)
	}

	return data, contentType, nil
}

// plausibleDocument accepts anything that sniffs as a known format or is
// at least big enough to be a real file.
func plausibleDocument(contentType, url string, data []byte) bool {
	if isPDF(contentType, url, data) {
		return true
	}
	return len(data) > minPayloadSize
}
