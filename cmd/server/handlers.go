package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"

	cobalt "github.com/Winder2006/COBALT"
	"github.com/Winder2006/COBALT/extract"
	"github.com/Winder2006/COBALT/registry"
	"github.com/Winder2006/COBALT/session"
)

type handler struct {
	engine          cobalt.Engine
	maxCombinedText int
}

func newHandler(e cobalt.Engine, cfg cobalt.Config) *handler {
	return &handler{engine: e, maxCombinedText: cfg.MaxCombinedText}
}

// POST /analyze
func (h *handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		SiteID string `json:"site_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "missing site activity ID")
		return
	}

	result, err := h.engine.Analyze(ctx, req.SiteID)
	if err != nil {
		h.writeEngineError(w, "analyze", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /analyze-with-documents
func (h *handler) handleAnalyzeWithDocuments(w http.ResponseWriter, r *http.Request) {
	// Listing, sequential extraction, and the AI call all happen in here.
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		SiteID string `json:"site_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "missing site ID")
		return
	}

	result, err := h.engine.AnalyzeWithDocuments(ctx, req.SiteID)
	if err != nil {
		h.writeEngineError(w, "analyze with documents", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /documents
func (h *handler) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	var req struct {
		SiteID string `json:"site_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SiteID == "" {
		writeError(w, http.StatusBadRequest, "missing site ID")
		return
	}

	docs, err := h.engine.ListDocuments(ctx, req.SiteID)
	if err != nil {
		h.writeEngineError(w, "list documents", err)
		return
	}
	if docs == nil {
		docs = []registry.DocumentMeta{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

// POST /documents/add
func (h *handler) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DocSeqNo string `json:"doc_seq_no"`
		URL      string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	doc, err := h.engine.AddDocument(req.DocSeqNo, req.URL)
	if err != nil {
		h.writeEngineError(w, "add document", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document": doc,
		"success":  true,
	})
}

// POST /documents/extract
func (h *handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	var req struct {
		Documents []registry.DocumentMeta `json:"documents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Documents) == 0 {
		writeError(w, http.StatusBadRequest, "no documents provided")
		return
	}

	result := h.engine.Extract(ctx, req.Documents)

	// Cap the combined text returned to clients; the full text stays
	// reflected in the summary's total length. The cut backs off to a
	// rune boundary so the JSON never carries a split character.
	if h.maxCombinedText > 0 && len(result.CombinedText) > h.maxCombinedText {
		cut := h.maxCombinedText
		for cut > 0 && !utf8.RuneStart(result.CombinedText[cut]) {
			cut--
		}
		result.CombinedText = result.CombinedText[:cut]
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /documents/summarize
func (h *handler) handleSummarize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req cobalt.SummarizeInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.engine.Summarize(ctx, req)
	if err != nil {
		h.writeEngineError(w, "summarize", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// POST /chat
func (h *handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Minute)
	defer cancel()

	var req struct {
		Question          string                      `json:"question"`
		Site              cobalt.SiteData             `json:"site_data"`
		SelectedDocuments []extract.ExtractedDocument `json:"selected_documents"`
		History           []session.Turn              `json:"history"`
		SessionID         string                      `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := h.engine.Chat(ctx, cobalt.ChatInput{
		Question:          req.Question,
		Site:              req.Site,
		SelectedDocuments: req.SelectedDocuments,
		History:           req.History,
		SessionID:         req.SessionID,
	})
	if err != nil {
		h.writeEngineError(w, "chat", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GET /health
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps engine errors to HTTP statuses: bad input is the
// client's fault (400), unknown sites are 404, upstream failures (the
// registry or the AI endpoint) are 502.
func (h *handler) writeEngineError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, cobalt.ErrInvalidSiteID),
		errors.Is(err, cobalt.ErrNoQuestion),
		errors.Is(err, cobalt.ErrNoText):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, cobalt.ErrSiteNotFound):
		writeError(w, http.StatusNotFound, "site not found")
	case errors.Is(err, cobalt.ErrRegistryUnavailable):
		slog.Error("registry unavailable", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, "registry unavailable")
	case errors.Is(err, cobalt.ErrAIUnavailable):
		slog.Error("AI endpoint failure", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, "AI endpoint unavailable")
	default:
		slog.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, op+" failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
