// Package cobalt is an environmental due-diligence engine for BRRTS-style
// remediation registries. It scrapes site records and document listings,
// extracts text from the associated filings, derives contamination risk
// flags, and answers questions about the site through an OpenAI-compatible
// language model.
package cobalt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Winder2006/COBALT/extract"
	"github.com/Winder2006/COBALT/llm"
	"github.com/Winder2006/COBALT/registry"
	"github.com/Winder2006/COBALT/risk"
	"github.com/Winder2006/COBALT/session"
)

// Engine is the main entry point for the due-diligence service.
type Engine interface {
	// Analyze fetches a site's registry record and returns it with derived
	// risk flags and a rule-based summary.
	Analyze(ctx context.Context, siteID string) (*AnalyzeResult, error)

	// AnalyzeWithDocuments runs the whole pipeline in one call: record
	// fetch, document listing, text extraction, and an AI analysis of the
	// combined text. Without an API key the AI step degrades to the
	// rule-based summary; extraction results are kept either way.
	AnalyzeWithDocuments(ctx context.Context, siteID string) (*FullAnalysis, error)

	// ListDocuments enumerates the documents filed against a site.
	// An empty listing is a valid result.
	ListDocuments(ctx context.Context, siteID string) ([]registry.DocumentMeta, error)

	// AddDocument builds document metadata for a manually supplied
	// document sequence number or direct download URL.
	AddDocument(docSeqNo, rawURL string) (*registry.DocumentMeta, error)

	// Extract downloads the given documents and extracts their text.
	// Per-document failures are recorded in the result, not returned.
	Extract(ctx context.Context, docs []registry.DocumentMeta) extract.Result

	// Summarize produces an AI due-diligence summary of extracted text.
	// Without an API key it degrades to a rule-based summary.
	Summarize(ctx context.Context, in SummarizeInput) (*SummarizeResult, error)

	// Chat answers a question about a site using its record, risk flags,
	// and extracted document text as context.
	Chat(ctx context.Context, in ChatInput) (*ChatResult, error)

	// Close releases the engine's resources.
	Close() error
}

// SiteData is client-supplied site context for Summarize and Chat.
type SiteData struct {
	Record    *registry.SiteRecord `json:"site_record"`
	RiskFlags risk.Flags           `json:"risk_flags"`
}

// AnalyzeResult is the outcome of a site analysis.
type AnalyzeResult struct {
	Record             *registry.SiteRecord `json:"site_record"`
	RiskFlags          risk.Flags           `json:"risk_flags"`
	Summary            string               `json:"summary"`
	DocumentsAvailable int                  `json:"documents_available"`
}

// FullAnalysis is the outcome of a one-shot site-and-documents analysis.
// The record and risk flags come from the scrape and the keyword scan;
// the model only contributes the findings block and the narrative summary,
// so a hallucinated field can never overwrite observed data.
type FullAnalysis struct {
	Record            *registry.SiteRecord    `json:"site_record"`
	RiskFlags         risk.Flags              `json:"risk_flags"`
	DocumentRisk      *risk.Analysis          `json:"document_risk_analysis,omitempty"`
	Findings          *DocumentFindings       `json:"document_findings,omitempty"`
	Summary           string                  `json:"summary"`
	Documents         []registry.DocumentMeta `json:"documents"`
	DocumentsAnalyzed int                     `json:"documents_analyzed"`
	Degraded          bool                    `json:"degraded,omitempty"`
}

// DocumentFindings is the structured findings block the model returns
// from the extracted document text.
type DocumentFindings struct {
	ContaminationDetails string   `json:"contamination_details"`
	RemediationStatus    string   `json:"remediation_status"`
	ClosureStatus        string   `json:"closure_status"`
	KeyConcentrations    []string `json:"key_concentrations"`
	Restrictions         string   `json:"restrictions"`
}

// SummarizeInput carries extracted text plus site context to Summarize.
type SummarizeInput struct {
	CombinedText string                  `json:"combined_text"`
	Site         SiteData                `json:"site_data"`
	Documents    []registry.DocumentMeta `json:"documents"`
}

// SummarizeResult is an AI-generated (or degraded rule-based) summary.
type SummarizeResult struct {
	Summary           string `json:"summary"`
	DocumentsAnalyzed int    `json:"documents_analyzed"`
	TextLength        int    `json:"text_length"`
	Degraded          bool   `json:"degraded,omitempty"`
}

// ChatInput is one chat turn with its full context.
type ChatInput struct {
	Question          string                      `json:"question"`
	Site              SiteData                    `json:"site_data"`
	SelectedDocuments []extract.ExtractedDocument `json:"selected_documents"`
	History           []session.Turn              `json:"history"`
	SessionID         string                      `json:"session_id"`
}

// ChatResult is the answer plus the updated conversation state.
type ChatResult struct {
	Answer             string         `json:"answer"`
	SessionID          string         `json:"session_id"`
	DocumentsProcessed int            `json:"documents_processed"`
	History            []session.Turn `json:"history"`
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	reg       *registry.Client
	extractor *extract.Extractor
	provider  llm.Provider // nil when no API key is configured
	model     string
	sessions  session.Store
}

// New creates an engine from configuration. A missing AI API key is not
// an error: the engine runs in degraded mode where Summarize falls back
// to rule-based output and Chat explains what is missing.
func New(cfg Config) (Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	timeout := time.Duration(cfg.Registry.TimeoutSeconds) * time.Second
	source := registry.NewSource(cfg.Registry.Browser, timeout)
	reg := registry.NewClient(registry.Config{
		BaseURL: cfg.Registry.BaseURL,
		Source:  source,
	})

	extractor := extract.NewExtractor(extract.Config{
		MaxDocuments: cfg.MaxDocuments,
		Timeout:      timeout,
	})

	var provider llm.Provider
	if cfg.AI.APIKey != "" {
		var err error
		provider, err = llm.NewProvider(llm.Config{
			Provider: cfg.AI.Provider,
			Model:    cfg.AI.Model,
			BaseURL:  cfg.AI.BaseURL,
			APIKey:   cfg.AI.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("creating AI provider: %w", err)
		}
	} else {
		slog.Warn("no AI API key configured, running in degraded mode")
	}

	var sessions session.Store
	switch cfg.Sessions.Backend {
	case "sqlite":
		s, err := session.NewSQLiteStore(cfg.Sessions.DBPath)
		if err != nil {
			return nil, fmt.Errorf("opening session store: %w", err)
		}
		sessions = s
	default:
		sessions = session.NewMemoryStore()
	}

	return &engine{
		cfg:       cfg,
		reg:       reg,
		extractor: extractor,
		provider:  provider,
		model:     cfg.AI.Model,
		sessions:  sessions,
	}, nil
}

func (e *engine) Analyze(ctx context.Context, siteID string) (*AnalyzeResult, error) {
	snap, err := e.reg.Fetch(ctx, siteID)
	if err != nil {
		return nil, err
	}

	return &AnalyzeResult{
		Record:             snap.Record,
		RiskFlags:          snap.PageFlags,
		Summary:            siteSummary(snap.Record, snap.PageFlags, len(snap.Documents)),
		DocumentsAvailable: len(snap.Documents),
	}, nil
}

func (e *engine) AnalyzeWithDocuments(ctx context.Context, siteID string) (*FullAnalysis, error) {
	snap, err := e.reg.Fetch(ctx, siteID)
	if err != nil {
		return nil, err
	}

	var extraction extract.Result
	if len(snap.Documents) > 0 {
		extraction = e.extractor.ExtractAll(ctx, snap.Documents)
	}

	out := &FullAnalysis{
		Record:            snap.Record,
		RiskFlags:         mergeFlags(snap.PageFlags, extraction.Risk),
		Summary:           "",
		Documents:         snap.Documents,
		DocumentsAnalyzed: extraction.Summary.Successful,
	}
	if extraction.Summary.Successful > 0 {
		docRisk := extraction.Risk
		out.DocumentRisk = &docRisk
	}

	if e.provider == nil {
		out.Summary = fallbackSummary(snap.Record, out.RiskFlags, "no AI API key configured")
		out.Degraded = true
		return out, nil
	}

	resp, err := e.provider.Chat(ctx, llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "system", Content: fullAnalysisSystemPrompt},
			{Role: "user", Content: fullAnalysisPrompt(snap.Record, extraction.CombinedText, extraction.Summary.Successful)},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	var parsed struct {
		Findings *DocumentFindings `json:"document_findings"`
		Summary  string            `json:"summary"`
	}
	raw := stripCodeFence(resp.Content)
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || (parsed.Findings == nil && parsed.Summary == "") {
		// The model ignored the format; its answer is still the summary.
		out.Summary = strings.TrimSpace(resp.Content)
		return out, nil
	}

	out.Findings = parsed.Findings
	out.Summary = parsed.Summary
	return out, nil
}

// mergeFlags unions page-derived flags with the document keyword scan.
// The page's status label wins; the documents' inferred status fills in
// only when the page gave nothing usable.
func mergeFlags(page risk.Flags, docs risk.Analysis) risk.Flags {
	merged := page
	d := docs.Flags
	merged.PFAS = merged.PFAS || d.PFAS
	merged.Petroleum = merged.Petroleum || d.Petroleum
	merged.HeavyMetals = merged.HeavyMetals || d.HeavyMetals
	merged.ChlorinatedSolvents = merged.ChlorinatedSolvents || d.ChlorinatedSolvents
	merged.OffsiteImpact = merged.OffsiteImpact || d.OffsiteImpact
	merged.GroundwaterImpact = merged.GroundwaterImpact || d.GroundwaterImpact
	merged.SoilContamination = merged.SoilContamination || d.SoilContamination
	if merged.StatusLabel == "" || merged.StatusLabel == "UNKNOWN" {
		if s := docs.InferredStatus; s != "" && s != "UNKNOWN" {
			merged.StatusLabel = s
		}
	}
	return merged
}

func (e *engine) ListDocuments(ctx context.Context, siteID string) ([]registry.DocumentMeta, error) {
	return e.reg.ListDocuments(ctx, siteID)
}

func (e *engine) AddDocument(docSeqNo, rawURL string) (*registry.DocumentMeta, error) {
	if seq := strings.TrimSpace(docSeqNo); seq != "" {
		return e.reg.ResolveDocument(seq, "")
	}

	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, fmt.Errorf("%w: docSeqNo or url required", registry.ErrInvalidID)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: not a valid download url: %q", registry.ErrInvalidID, rawURL)
	}

	return &registry.DocumentMeta{
		ID:          0,
		Name:        "Site File Documentation (ID: Manual)",
		Category:    "Site File",
		Comment:     "Manually added document",
		DownloadURL: raw,
	}, nil
}

func (e *engine) Extract(ctx context.Context, docs []registry.DocumentMeta) extract.Result {
	return e.extractor.ExtractAll(ctx, docs)
}

func (e *engine) Summarize(ctx context.Context, in SummarizeInput) (*SummarizeResult, error) {
	if strings.TrimSpace(in.CombinedText) == "" {
		return nil, ErrNoText
	}

	if e.provider == nil {
		return &SummarizeResult{
			Summary:           fallbackSummary(in.Site.Record, in.Site.RiskFlags, "no AI API key configured"),
			DocumentsAnalyzed: len(in.Documents),
			TextLength:        len(in.CombinedText),
			Degraded:          true,
		}, nil
	}

	resp, err := e.provider.Chat(ctx, llm.ChatRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: "system", Content: summarizeSystemPrompt},
			{Role: "user", Content: summaryPrompt(in.Site.Record, in.CombinedText)},
		},
		MaxTokens: 3000,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	summary := resp.Content
	if summary == "" {
		summary = "No summary generated."
	}

	return &SummarizeResult{
		Summary:           summary,
		DocumentsAnalyzed: len(in.Documents),
		TextLength:        len(in.CombinedText),
	}, nil
}

func (e *engine) Chat(ctx context.Context, in ChatInput) (*ChatResult, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, ErrNoQuestion
	}

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	history := in.History
	if len(history) == 0 && in.SessionID != "" {
		stored, err := e.sessions.History(ctx, sessionID)
		if err == nil {
			history = stored
		}
	}

	if e.provider == nil {
		answer := degradedChatAnswer(in.Site.Record, len(in.SelectedDocuments), question)
		return e.finishChat(ctx, sessionID, history, question, answer, 0), nil
	}

	extractedText, withText := combineExtractedText(in.SelectedDocuments, maxChatText)

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{
		Role:    "system",
		Content: chatSystemPrompt(in.Site, in.SelectedDocuments, extractedText, withText),
	})
	for _, t := range history {
		messages = append(messages, llm.Message{Role: t.Role, Content: t.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})

	resp, err := e.provider.Chat(ctx, llm.ChatRequest{
		Model:     e.model,
		Messages:  messages,
		MaxTokens: 2048,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAIUnavailable, err)
	}

	answer := resp.Content
	if answer == "" {
		answer = "No response generated."
	}

	return e.finishChat(ctx, sessionID, history, question, answer, withText), nil
}

// finishChat records the exchange in the session store and builds the
// result. A store failure is logged, not surfaced: the answer already
// exists and the client carries its own history copy.
func (e *engine) finishChat(ctx context.Context, sessionID string, history []session.Turn, question, answer string, docsProcessed int) *ChatResult {
	turns := []session.Turn{
		{Role: "user", Content: question},
		{Role: "assistant", Content: answer},
	}
	if err := e.sessions.Append(ctx, sessionID, turns...); err != nil {
		slog.Warn("failed to persist chat turns", "session_id", sessionID, "error", err)
	}

	return &ChatResult{
		Answer:             answer,
		SessionID:          sessionID,
		DocumentsProcessed: docsProcessed,
		History:            append(history, turns...),
	}
}

func (e *engine) Close() error {
	return e.sessions.Close()
}

// combineExtractedText joins the text of successfully extracted documents
// under per-document headers, capped at max characters. Returns the text
// and how many documents contributed.
func combineExtractedText(docs []extract.ExtractedDocument, max int) (string, int) {
	var parts []string
	count := 0
	for _, doc := range docs {
		if doc.Text == nil || *doc.Text == "" {
			continue
		}
		count++
		date := doc.Date
		if date == "" {
			date = "No date"
		}
		parts = append(parts, fmt.Sprintf("=== Document %d: %s (%s) ===\n%s", count, doc.Name, date, *doc.Text))
	}
	if count == 0 {
		return "", 0
	}
	return truncateText(strings.Join(parts, "\n\n"), max), count
}

// truncateText caps text at max bytes, appending a marker when anything
// was dropped. The cut backs off to a rune boundary so a multi-byte
// character is never split.
func truncateText(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:runeCut(text, max)] + "\n\n[Document text truncated due to length...]"
}

// runeCut returns the largest cut <= max that falls on a rune boundary.
func runeCut(text string, max int) int {
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return max
}

func degradedChatAnswer(rec *registry.SiteRecord, docCount int, question string) string {
	activity := "(unknown)"
	status := "unknown"
	if rec != nil {
		if rec.ActivityNumber != "" {
			activity = rec.ActivityNumber
		}
		if rec.Status != "" {
			status = rec.Status
		}
	}
	return fmt.Sprintf(
		"Site %s has status: %s. You selected %d document(s). "+
			"AI analysis requires an API key to be configured.\n\nYour question: %s",
		activity, status, docCount, question,
	)
}

// mustJSON renders v as indented JSON for prompt embedding. Prompt
// context is best-effort, so marshal failures degrade to a placeholder
// instead of failing the request.
func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "(unavailable)"
	}
	return string(b)
}
