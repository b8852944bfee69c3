// Package extract downloads registry documents and extracts their text
// through an ordered chain of backends. Backends are tried first-match-wins:
// the first one that supports the payload and returns non-empty text
// settles the document. All backends failing marks the document failed
// without affecting the rest of the batch.
package extract

import (
	"context"
	"log/slog"
)

// Backend extracts text from a downloaded document payload.
type Backend interface {
	// Name identifies the backend in logs and extraction metadata.
	Name() string

	// Supports reports whether the backend can plausibly handle a payload,
	// judged from the Content-Type header, the URL, and the leading bytes.
	Supports(contentType, url string, data []byte) bool

	// Extract returns the document's text, or an error. Empty text with a
	// nil error counts as a miss and moves the chain to the next backend.
	Extract(ctx context.Context, data []byte) (string, error)
}

// Chain is an ordered list of backends tried in sequence.
type Chain []Backend

// DefaultChain returns the standard backend ordering: structured PDF text
// first, the low-level content-stream reader for PDFs the structured
// reader chokes on, then the spreadsheet reader.
func DefaultChain() Chain {
	return Chain{
		&pdfTextBackend{},
		&pdfStreamBackend{},
		&xlsxBackend{},
	}
}

// Extract runs the chain against a payload. It returns the extracted text
// and the name of the backend that produced it, or ok=false when every
// applicable backend failed or none applied.
func (c Chain) Extract(ctx context.Context, contentType, url string, data []byte) (text, backend string, ok bool) {
	for _, b := range c {
		if !b.Supports(contentType, url, data) {
			continue
		}

		out, err := b.Extract(ctx, data)
		if err != nil {
			slog.Debug("extract: backend failed, trying next",
				"backend", b.Name(),
				"url", url,
				"error", err,
			)
			continue
		}
		if out == "" {
			continue
		}
		return out, b.Name(), true
	}
	return "", "", false
}
