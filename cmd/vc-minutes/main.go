package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MizukiMachine/discord-VC-minutes/internal/audio"
	"github.com/MizukiMachine/discord-VC-minutes/internal/config"
	"github.com/MizukiMachine/discord-VC-minutes/internal/llm"
	"github.com/MizukiMachine/discord-VC-minutes/internal/server"
	"github.com/MizukiMachine/discord-VC-minutes/internal/session"
	"github.com/MizukiMachine/discord-VC-minutes/internal/storage"
	"github.com/MizukiMachine/discord-VC-minutes/internal/summary"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcribe"
	"github.com/MizukiMachine/discord-VC-minutes/internal/transcript"
)

// archiveSink persists artifacts in sqlite and mirrors produced minutes into
// the per-day markdown log.
type archiveSink struct {
	db     *storage.SQLiteArchive
	md     *storage.MarkdownWriter
	logger *slog.Logger
}

func (a archiveSink) SaveMinutes(m summary.Minutes) error {
	if err := a.db.SaveMinutes(m); err != nil {
		return err
	}
	if a.md != nil {
		if err := a.md.Append(m); err != nil {
			a.logger.Warn("markdown minutes log failed", "session_id", m.SessionID, "error", err)
		}
	}
	return nil
}

func (a archiveSink) SaveTranscript(tr transcript.Transcript, note string) error {
	return a.db.SaveTranscript(tr, note)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "vc-minutes: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	cfg, warnings, err := config.Load(os.Getenv(config.EnvPrefix + "CONFIG"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	for _, w := range warnings {
		logger.Warn(w)
	}

	archive, err := storage.NewSQLiteArchive(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = archive.Close() }()

	store := audio.NewStore(audio.StoreConfig{
		Window:          cfg.ParsedWindow(),
		MaxSessionBytes: cfg.MaxSessionBytes,
		MaxChunkBytes:   cfg.MaxChunkBytes,
	})

	gateway, err := transcribe.NewGateway(transcribe.Options{
		Provider:    cfg.TranscribeProvider,
		APIKey:      cfg.TranscribeAPIKey(),
		BaseURL:     cfg.TranscribeBaseURL,
		Model:       cfg.TranscribeModel,
		Language:    cfg.TranscribeLanguage,
		Timeout:     cfg.ParsedTranscribeTimeout(),
		MaxAttempts: cfg.TranscribeAttempts,
	})
	if err != nil {
		return fmt.Errorf("build transcription gateway: %w", err)
	}

	summarizer := summary.New(summary.Config{
		Model:          cfg.SummaryModel,
		ChunkThreshold: cfg.SummaryChunkThreshold,
		Timeout:        cfg.ParsedSummaryTimeout(),
		MaxAttempts:    cfg.SummaryAttempts,
	}, func(provider, model string) (llm.Client, error) {
		return llm.NewClient(provider, cfg.SummaryAPIKey(), model)
	})

	hub := server.NewHub(logger)
	coord := session.NewCoordinator(
		store,
		gateway,
		summarizer,
		archiveSink{db: archive, md: storage.NewMarkdownWriter(cfg.MinutesDir), logger: logger},
		hub,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go store.Run(ctx, cfg.ParsedSweepInterval())
	go coord.RunIdleWatchdog(ctx, cfg.ParsedIdleTimeout(), cfg.ParsedWatchdogInterval())

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(hub, coord, archive, warnings, logger),
	}
	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}
	coord.CloseAll()
	return nil
}
