package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfTextBackend extracts text with the structured PDF reader. Fast and
// accurate for well-formed files; malformed cross-reference tables or
// exotic encodings push the document to the stream backend instead.
type pdfTextBackend struct{}

func (b *pdfTextBackend) Name() string { return "pdf-text" }

func (b *pdfTextBackend) Supports(contentType, url string, data []byte) bool {
	return isPDF(contentType, url, data)
}

func (b *pdfTextBackend) Extract(ctx context.Context, data []byte) (text string, err error) {
	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// Skip pages that fail to extract
			continue
		}

		pageText = strings.TrimSpace(pageText)
		if pageText != "" {
			parts = append(parts, pageText)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// isPDF sniffs a payload for PDF-ness: magic bytes first, then the
// Content-Type header, then the URL extension.
func isPDF(contentType, url string, data []byte) bool {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return true
	}
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(url), ".pdf")
}
