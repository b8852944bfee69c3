package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	cobalt "github.com/Winder2006/COBALT"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := cobalt.DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = cobalt.LoadConfig(*configPath)
		if err != nil {
			slog.Error("loading config", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	// Override from environment variables.
	if v := os.Getenv("COBALT_REGISTRY_BASE_URL"); v != "" {
		cfg.Registry.BaseURL = v
	}
	if v := os.Getenv("COBALT_BROWSER"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Registry.Browser = b
		}
	}
	if v := os.Getenv("COBALT_AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("COBALT_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("COBALT_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("COBALT_AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("COBALT_SESSION_BACKEND"); v != "" {
		cfg.Sessions.Backend = v
	}
	if v := os.Getenv("COBALT_SESSION_DB"); v != "" {
		cfg.Sessions.DBPath = v
	}

	// Fallback: check well-known provider env vars for API keys.
	if cfg.AI.APIKey == "" {
		switch cfg.AI.Provider {
		case "openrouter":
			cfg.AI.APIKey = os.Getenv("OPENROUTER_API_KEY")
		case "openai":
			cfg.AI.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	// Hosted platforms inject PORT.
	if v := os.Getenv("PORT"); v != "" {
		*addr = ":" + v
	}

	apiKey := os.Getenv("COBALT_API_KEY")
	corsOrigins := os.Getenv("COBALT_CORS_ORIGINS")

	engine, err := cobalt.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	h := newHandler(engine, cfg)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /analyze", h.handleAnalyze)
	mux.HandleFunc("POST /analyze-with-documents", h.handleAnalyzeWithDocuments)
	mux.HandleFunc("POST /documents", h.handleListDocuments)
	mux.HandleFunc("POST /documents/add", h.handleAddDocument)
	mux.HandleFunc("POST /documents/extract", h.handleExtract)
	mux.HandleFunc("POST /documents/summarize", h.handleSummarize)
	mux.HandleFunc("POST /chat", h.handleChat)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // extraction and AI calls can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr, "registry", cfg.Registry.BaseURL)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}
