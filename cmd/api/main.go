package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/lumen/backend/internal/analysis/content"
	"github.com/zhouzirui/lumen/backend/internal/config"
	"github.com/zhouzirui/lumen/backend/internal/handler"
	searchhandler "github.com/zhouzirui/lumen/backend/internal/handler/search"
	"github.com/zhouzirui/lumen/backend/internal/metrics"
	"github.com/zhouzirui/lumen/backend/internal/service/ai"
	"github.com/zhouzirui/lumen/backend/internal/service/chat"
	"github.com/zhouzirui/lumen/backend/internal/service/search"
	"github.com/zhouzirui/lumen/backend/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	level := slog.LevelInfo
	if err == nil {
		level, _ = cfg.Log.SlogLevel()
	}
	slog.SetDefault(newLogger(os.Stdout, level))

	if envErr != nil {
		slog.Warn("failed to load .env file, continuing with system environment variables only", "error", envErr)
	}
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	chatModel, err := cfg.NewChatModel(ctx, m)
	if err != nil {
		slog.Error("failed to create chat model", "provider", cfg.Inference.Provider, "error", err)
		os.Exit(1)
	}
	slog.Info("inference backend ready", "provider", cfg.Inference.Provider, "model", cfg.Inference.Model)

	chatService := chat.NewService(chat.Options{
		SystemPrompt: ai.SystemPrompt,
		ContextSize:  cfg.History.ContextSize,
		HistoryLimit: cfg.History.Limit,
	})
	aiService := ai.NewService(chatModel, m)

	pool := worker.NewPool(cfg.Search.ParseWorkers)
	searchClient := search.NewClient(search.Config{
		BaseURL: cfg.Search.BaseURL,
		Locale:  cfg.Search.Locale,
		Timeout: cfg.Search.Timeout,
		Buffer:  cfg.Search.Buffer,
	}, pool, content.DefaultExtractor(), m)
	slog.Info("search ready", "mode", cfg.Search.Mode, "parseWorkers", pool.Size())

	router := handler.NewRouter(chatService, aiService, searchClient, searchhandler.Defaults{
		MaxResults: cfg.Search.MaxResults,
		Mode:       cfg.Search.SearchMode(),
	}, m)

	startServer(ctx, cfg.Server, router)
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	slog.Info("lumen backend listening", "addr", addr)
	if err := runServer(ctx, srv); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
