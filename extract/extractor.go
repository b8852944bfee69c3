package extract

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Winder2006/COBALT/registry"
	"github.com/Winder2006/COBALT/risk"
)

// Extraction statuses, one per document.
const (
	StatusSuccess          = "success"
	StatusNoURL            = "no_url"
	StatusDownloadFailed   = "download_failed"
	StatusExtractionFailed = "extraction_failed"
	StatusSkipped          = "skipped" // over the batch cap
)

// ExtractedDocument is a listing entry plus its extraction outcome.
// Text is nil whenever Status is not StatusSuccess.
type ExtractedDocument struct {
	registry.DocumentMeta
	Text       *string `json:"extracted_text"`
	Status     string  `json:"extraction_status"`
	Backend    string  `json:"extraction_backend,omitempty"`
	TextLength int     `json:"text_length,omitempty"`
}

// Summary counts one batch's outcomes.
type Summary struct {
	Total           int `json:"total"`
	Successful      int `json:"successful"`
	Failed          int `json:"failed"`
	TotalTextLength int `json:"total_text_length"`
}

// Result is everything one extraction batch produces.
type Result struct {
	Documents    []ExtractedDocument `json:"documents"`
	CombinedText string              `json:"combined_text"`
	Summary      Summary             `json:"extraction_summary"`
	Risk         risk.Analysis       `json:"risk_analysis"`
}

// Extractor downloads and extracts a batch of documents sequentially.
// Documents are independent: a failed download or extraction is recorded
// on that document and the batch carries on.
type Extractor struct {
	downloader *Downloader
	chain      Chain
	maxDocs    int
}

// Config configures an Extractor.
type Config struct {
	// MaxDocuments caps how many documents one batch will process;
	// entries past the cap come back with StatusSkipped. Default 20.
	MaxDocuments int
	// Timeout bounds each document's download.
	Timeout time.Duration
	// Chain overrides the default backend chain (mainly for tests).
	Chain Chain
}

// NewExtractor creates an extractor with the default backend chain.
func NewExtractor(cfg Config) *Extractor {
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = 20
	}
	chain := cfg.Chain
	if chain == nil {
		chain = DefaultChain()
	}
	return &Extractor{
		downloader: NewDownloader(cfg.Timeout),
		chain:      chain,
		maxDocs:    cfg.MaxDocuments,
	}
}

// ExtractAll processes a document selection in input order. The output
// always has one entry per input document, and the combined text is the
// ordered concatenation of the successful extractions, each preceded by
// a document header.
func (e *Extractor) ExtractAll(ctx context.Context, docs []registry.DocumentMeta) Result {
	out := make([]ExtractedDocument, 0, len(docs))
	var combined []string

	for i, doc := range docs {
		if i >= e.maxDocs {
			out = append(out, ExtractedDocument{DocumentMeta: doc, Status: StatusSkipped})
			continue
		}

		extracted := e.extractOne(ctx, doc)
		out = append(out, extracted)

		if extracted.Status == StatusSuccess {
			header := fmt.Sprintf("=== Document %d: %s (%s) ===\n", i+1, doc.Name, orNoDate(doc.Date))
			combined = append(combined, header+*extracted.Text)
		}
	}

	combinedText := strings.Join(combined, "\n\n")

	summary := Summary{Total: len(docs), TotalTextLength: len(combinedText)}
	for _, d := range out {
		if d.Status == StatusSuccess {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}

	slog.Info("extraction batch finished",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"combined_chars", summary.TotalTextLength,
	)

	return Result{
		Documents:    out,
		CombinedText: combinedText,
		Summary:      summary,
		Risk:         risk.Analyze(combinedText),
	}
}

func (e *Extractor) extractOne(ctx context.Context, doc registry.DocumentMeta) ExtractedDocument {
	result := ExtractedDocument{DocumentMeta: doc, Status: StatusNoURL}
	if doc.DownloadURL == "" {
		return result
	}

	data, contentType, err := e.downloader.Download(ctx, doc.DownloadURL)
	if err != nil {
		slog.Warn("document download failed", "url", doc.DownloadURL, "error", err)
		result.Status = StatusDownloadFailed
		return result
	}

	text, backend, ok := e.chain.Extract(ctx, contentType, doc.DownloadURL, data)
	if !ok {
		slog.Warn("no backend extracted text", "url", doc.DownloadURL, "bytes", len(data))
		result.Status = StatusExtractionFailed
		return result
	}

	text = CleanText(text)
	if text == "" {
		result.Status = StatusExtractionFailed
		return result
	}

	result.Text = &text
	result.Status = StatusSuccess
	result.Backend = backend
	result.TextLength = len(text)
	return result
}

func orNoDate(date string) string {
	if date == "" {
		return "No date"
	}
	return date
}

var (
	blankRunsRe      = regexp.MustCompile(`\n{3,}`)
	horizontalWSRe   = regexp.MustCompile(`[ \t]+`)
	trailingSpacesRe = regexp.MustCompile(` +\n`)
)

// CleanText normalizes extracted text: collapses blank-line runs and
// horizontal whitespace, strips NUL artifacts, trims the ends.
func CleanText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	text = blankRunsRe.ReplaceAllString(text, "\n\n")
	text = horizontalWSRe.ReplaceAllString(text, " ")
	text = trailingSpacesRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}
