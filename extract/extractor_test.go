package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Winder2006/COBALT/registry"
)

// stubBackend returns canned text for any payload.
type stubBackend struct {
	name string
	text string
	err  error
}

func (s *stubBackend) Name() string                        { return s.name }
func (s *stubBackend) Supports(_, _ string, _ []byte) bool { return true }
func (s *stubBackend) Extract(_ context.Context, _ []byte) (string, error) {
	return s.text, s.err
}

func docServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			fmt.Fprint(w, "%PDF-1.4 fake body")
		case "/missing.pdf":
			http.NotFound(w, r)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractAllMixedBatch(t *testing.T) {
	srv := docServer(t)

	e := NewExtractor(Config{
		Chain: Chain{&stubBackend{name: "stub", text: "PFAS detected at the site. Case closed."}},
	})

	docs := []registry.DocumentMeta{
		{ID: 0, Name: "Closure Letter", Date: "03/15/2002", DownloadURL: srv.URL + "/ok.pdf"},
		{ID: 1, Name: "Broken Link", DownloadURL: srv.URL + "/missing.pdf"},
		{ID: 2, Name: "No Link"},
	}

	res := e.ExtractAll(context.Background(), docs)

	if len(res.Documents) != len(docs) {
		t.Fatalf("len(Documents) = %d, want %d", len(res.Documents), len(docs))
	}
	if res.Summary.Total != 3 || res.Summary.Successful != 1 || res.Summary.Failed != 2 {
		t.Errorf("Summary = %+v, want total 3, successful 1, failed 2", res.Summary)
	}

	if got := res.Documents[0].Status; got != StatusSuccess {
		t.Errorf("doc 0 status = %q, want success", got)
	}
	if res.Documents[0].Text == nil || !strings.Contains(*res.Documents[0].Text, "PFAS") {
		t.Errorf("doc 0 text = %v", res.Documents[0].Text)
	}
	if res.Documents[0].Backend != "stub" {
		t.Errorf("doc 0 backend = %q, want stub", res.Documents[0].Backend)
	}

	if got := res.Documents[1].Status; got != StatusDownloadFailed {
		t.Errorf("doc 1 status = %q, want download_failed", got)
	}
	if res.Documents[1].Text != nil {
		t.Errorf("doc 1 text = %q, want nil", *res.Documents[1].Text)
	}

	if got := res.Documents[2].Status; got != StatusNoURL {
		t.Errorf("doc 2 status = %q, want no_url", got)
	}

	// Combined text: header per successful document, input order.
	if !strings.HasPrefix(res.CombinedText, "=== Document 1: Closure Letter (03/15/2002) ===") {
		t.Errorf("combined text header missing: %q", res.CombinedText)
	}
	if res.Summary.TotalTextLength != len(res.CombinedText) {
		t.Errorf("TotalTextLength = %d, want %d", res.Summary.TotalTextLength, len(res.CombinedText))
	}

	// Risk analysis runs over the combined text.
	if !res.Risk.Flags.PFAS {
		t.Error("risk pfas flag = false, want true")
	}
	if res.Risk.InferredStatus != "CLOSED" {
		t.Errorf("inferred status = %q, want CLOSED", res.Risk.InferredStatus)
	}
}

func TestExtractAllPartialFailureKeepsOrder(t *testing.T) {
	srv := docServer(t)
	e := NewExtractor(Config{
		Chain: Chain{&stubBackend{name: "stub", text: "petroleum impacted soil"}},
	})

	docs := []registry.DocumentMeta{
		{ID: 0, Name: "A", DownloadURL: srv.URL + "/ok.pdf"},
		{ID: 1, Name: "B", DownloadURL: srv.URL + "/missing.pdf"},
		{ID: 2, Name: "C", DownloadURL: srv.URL + "/ok.pdf"},
	}

	res := e.ExtractAll(context.Background(), docs)

	if res.Summary.Total != 3 || res.Summary.Successful != 2 {
		t.Fatalf("Summary = %+v, want total 3, successful 2", res.Summary)
	}
	if res.Documents[1].Text != nil {
		t.Error("failed document should carry nil text")
	}

	// Headers number documents by input position, so the second success
	// is still "Document 3".
	if !strings.Contains(res.CombinedText, "=== Document 3: C") {
		t.Errorf("combined text lost input ordering: %q", res.CombinedText)
	}
}

func TestExtractAllBatchCap(t *testing.T) {
	srv := docServer(t)
	e := NewExtractor(Config{
		MaxDocuments: 1,
		Chain:        Chain{&stubBackend{name: "stub", text: "text"}},
	})

	docs := []registry.DocumentMeta{
		{ID: 0, Name: "A", DownloadURL: srv.URL + "/ok.pdf"},
		{ID: 1, Name: "B", DownloadURL: srv.URL + "/ok.pdf"},
	}

	res := e.ExtractAll(context.Background(), docs)

	if len(res.Documents) != 2 {
		t.Fatalf("len(Documents) = %d, want 2", len(res.Documents))
	}
	if res.Documents[0].Status != StatusSuccess {
		t.Errorf("doc 0 status = %q", res.Documents[0].Status)
	}
	if res.Documents[1].Status != StatusSkipped {
		t.Errorf("doc 1 status = %q, want skipped", res.Documents[1].Status)
	}
}

func TestExtractAllAllBackendsFail(t *testing.T) {
	srv := docServer(t)
	e := NewExtractor(Config{
		Chain: Chain{
			&stubBackend{name: "a", err: fmt.Errorf("broken")},
			&stubBackend{name: "b", text: ""}, // empty text is a miss too
		},
	})

	docs := []registry.DocumentMeta{{ID: 0, Name: "A", DownloadURL: srv.URL + "/ok.pdf"}}
	res := e.ExtractAll(context.Background(), docs)

	if res.Documents[0].Status != StatusExtractionFailed {
		t.Errorf("status = %q, want extraction_failed", res.Documents[0].Status)
	}
	if res.CombinedText != "" {
		t.Errorf("combined text = %q, want empty", res.CombinedText)
	}
}

func TestChainFirstMatchWins(t *testing.T) {
	chain := Chain{
		&stubBackend{name: "first", err: fmt.Errorf("nope")},
		&stubBackend{name: "second", text: "from second"},
		&stubBackend{name: "third", text: "from third"},
	}

	text, backend, ok := chain.Extract(context.Background(), "application/pdf", "x.pdf", []byte("%PDF"))
	if !ok {
		t.Fatal("chain returned ok=false")
	}
	if backend != "second" || text != "from second" {
		t.Errorf("got %q from %q, want %q from second", text, backend, "from second")
	}
}

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse blank runs", "a\n\n\n\n\nb", "a\n\nb"},
		{"collapse spaces", "a   \t  b", "a b"},
		{"trailing spaces before newline", "a  \nb", "a\nb"},
		{"strip nulls", "a\x00b", "ab"},
		{"trim", "  a  ", "a"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanText(tt.in); got != tt.want {
				t.Errorf("CleanText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsPDF(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		url         string
		data        string
		want        bool
	}{
		{"magic bytes", "", "", "%PDF-1.7", true},
		{"content type", "application/pdf", "", "junk", true},
		{"url extension", "application/octet-stream", "http://x/doc.PDF", "junk", true},
		{"none", "text/html", "http://x/page", "<html>", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isPDF(tt.contentType, tt.url, []byte(tt.data)); got != tt.want {
				t.Errorf("isPDF = %v, want %v", got, tt.want)
			}
		})
	}
}
