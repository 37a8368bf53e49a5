package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DJ-Manjaray/longdoc/internal/answer"
	"github.com/DJ-Manjaray/longdoc/internal/api"
	"github.com/DJ-Manjaray/longdoc/internal/chunker"
	"github.com/DJ-Manjaray/longdoc/internal/config"
	"github.com/DJ-Manjaray/longdoc/internal/llm"
	"github.com/DJ-Manjaray/longdoc/internal/navigate"
	"github.com/DJ-Manjaray/longdoc/internal/pipeline"
	"github.com/DJ-Manjaray/longdoc/internal/store"
	"github.com/DJ-Manjaray/longdoc/internal/tokenizer"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY not set; /api/ask will return errors until configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Error("failed to create upload dir", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}

	docs, err := store.Open(cfg.DBPath, log)
	if err != nil {
		log.Error("failed to open store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer docs.Close()
	if err := docs.Init(ctx); err != nil {
		log.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}

	tok, err := tokenizer.NewTiktoken(cfg.TokenizerEncoding)
	if err != nil {
		log.Error("failed to load tokenizer encoding", "encoding", cfg.TokenizerEncoding, "error", err)
		os.Exit(1)
	}

	stats := llm.NewStats(time.Hour)
	var chat llm.ChatClient = llm.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, stats, log)
	chat = llm.WithRetry(chat, cfg.LLMMaxRetries)

	splitter := chunker.NewSplitter(tok, chunker.RuleSegmenter{}, cfg.MaxChunks)
	router := navigate.NewModelRouter(chat, tok, navigate.RouterConfig{
		ReasoningModel: cfg.RoutingModel,
		SelectionModel: cfg.SelectionModel,
		PreviewTokens:  cfg.PreviewTokens,
	}, log)
	nav := navigate.NewNavigator(splitter, router, cfg.TopMinTokens, cfg.SubMinTokens, log)
	syn := answer.NewSynthesizer(chat, cfg.AnswerModel, float32(cfg.AnswerTemperature), log)

	orch := pipeline.NewOrchestrator(docs, tok, cfg.UploadDir, cfg.WorkerCount, cfg.MaxQueueSize, cfg.JobTTL, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, docs, nav, syn, stats, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Stop accepting requests before closing the pipeline so late
		// uploads cannot race a closed queue.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting longdoc", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
