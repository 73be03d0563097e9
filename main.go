package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chatlytics/internal/analytics"
	"chatlytics/internal/chat"
	"chatlytics/internal/config"
	"chatlytics/internal/geo"
	"chatlytics/internal/history"
	"chatlytics/internal/llm"
	"chatlytics/internal/reaper"
	"chatlytics/internal/retriever"
	"chatlytics/internal/store"
	transport "chatlytics/internal/transport/http"
)

func main() {
	// Load .env if present; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)
	log.Info("starting chatlytics",
		"http_port", cfg.HTTPPort,
		"database", cfg.DatabasePath,
		"inactivity_timeout", cfg.InactivityTimeout)

	// Storage
	db, err := store.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		log.Error("store initialization failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Event processing
	recorder := analytics.NewRecorder(db, log)
	cache := history.New(cfg.HistoryLimit)

	// Answer generation collaborators
	var llmClient llm.Client
	if cfg.LLMAPIKey != "" {
		llmClient = llm.NewOpenAI(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel)
	} else {
		log.Warn("no LLM API key configured, answering with canned responses")
		llmClient = llm.Static("The assistant is not configured yet. Please try again later.")
	}
	var ret retriever.Retriever
	if cfg.RetrieverURL != "" {
		ret = retriever.NewHTTPRetriever(cfg.RetrieverURL)
	}
	answerer := chat.NewAnswerer(llmClient, ret, cfg.SystemPrompt, cfg.RetrieverTopK, log)

	// Reverse geocoding
	geocoder := geo.NewGeocoder(cfg.GeocodeCachePath, cfg.GeocodeUserAgent, log)

	// WebSocket orchestrator
	chatServer := chat.NewServer(chat.Options{
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		PingInterval:   cfg.PingInterval,
		AnswerTimeout:  cfg.AnswerTimeout,
		MaxMessageSize: cfg.MaxMessageSize,
	}, recorder, db, cache, answerer, geocoder, log)

	// HTTP server
	e := transport.NewServer(db, recorder, chatServer, log)

	// Inactivity reaper
	reap := reaper.New(db, cfg.InactivityTimeout, log)
	if err := reap.Start(cfg.ReapSchedule); err != nil {
		log.Error("reaper start failed", "error", err)
		os.Exit(1)
	}

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()
	log.Info("listening", "port", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	reap.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown incomplete", "error", err)
	}
	log.Info("stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
