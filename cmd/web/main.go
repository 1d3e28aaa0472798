package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"uploadai/internal/ai"
	"uploadai/internal/handlers"
	"uploadai/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	addr := envOrDefault("APP_ADDR", ":3333")
	uploadsDir := envOrDefault("UPLOADS_DIR", "uploads")
	maxUploadBytes := envInt64OrDefault("MAX_UPLOAD_BYTES", 100*1024*1024)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := newStore(ctx, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	transcriber, generator := newProviders(logger)

	app := handlers.NewApp(logger, store, transcriber, generator, uploadsDir, maxUploadBytes)

	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}
	logger.Info("server stopped")
}

func newStore(ctx context.Context, logger *slog.Logger) (storage.Store, error) {
	if databaseURL := os.Getenv("DATABASE_URL"); databaseURL != "" {
		return storage.NewPostgresStore(ctx, logger, databaseURL)
	}
	logger.Info("DATABASE_URL not set, using in-memory store")
	return storage.NewMemoryStore(), nil
}

func newProviders(logger *slog.Logger) (ai.Transcriber, ai.Generator) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		logger.Warn("OPENAI_API_KEY not set, using mock providers")
		return ai.MockTranscriber{Text: "transcrição de exemplo gerada sem provedor configurado"}, ai.MockGenerator{}
	}

	provider := ai.NewOpenAIProvider(
		apiKey,
		os.Getenv("OPENAI_BASE_URL"),
		os.Getenv("CHAT_MODEL"),
		envOrDefault("WHISPER_LANGUAGE", "pt"),
	)
	return provider, provider
}

func envOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt64OrDefault(key string, fallback int64) int64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
