package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/lure/internal/api"
	"github.com/MikeSquared-Agency/lure/internal/assess"
	"github.com/MikeSquared-Agency/lure/internal/callback"
	"github.com/MikeSquared-Agency/lure/internal/config"
	"github.com/MikeSquared-Agency/lure/internal/engage"
	"github.com/MikeSquared-Agency/lure/internal/events"
	"github.com/MikeSquared-Agency/lure/internal/llm"
	"github.com/MikeSquared-Agency/lure/internal/persona"
	"github.com/MikeSquared-Agency/lure/internal/session"
	"github.com/MikeSquared-Agency/lure/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("lure starting", "port", cfg.Port, "persona", cfg.PersonaName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.APIKey == "" {
		slog.Error("LURE_API_KEY is required")
		os.Exit(1)
	}
	if cfg.CallbackURL == "" {
		slog.Error("FINAL_CALLBACK_URL is required")
		os.Exit(1)
	}

	// Generation capability (optional — template-only mode without a key)
	var completer llm.Completer
	if cfg.AnthropicAPIKey != "" {
		completer = llm.NewClient(cfg.AnthropicAPIKey, cfg.AnthropicModel, cfg.GenTimeout)
		slog.Info("generation client ready", "model", cfg.AnthropicModel)
	} else {
		slog.Warn("no generation key configured — running template-only")
	}

	gen := persona.New(completer, persona.Config{
		Name:       cfg.PersonaName,
		GenTimeout: cfg.GenTimeout,
	}, slog.Default())

	engine := assess.NewEngine(cfg.ScamThreshold)
	sessions := session.NewStore()
	dispatcher := callback.NewDispatcher(cfg.CallbackURL, cfg.CallbackTimeout, cfg.CallbackMaxAttempts, slog.Default())

	// Archive store (optional — delivery records stay in memory without it)
	var archive engage.Archive
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		archive = db
		slog.Info("archive database connected")
	} else {
		slog.Warn("no database configured — callback records are in-memory only")
	}

	// Event publisher (optional)
	var publisher engage.EventPublisher
	if cfg.NatsURL != "" {
		pub, err := events.NewPublisher(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer pub.Close()
		publisher = pub
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	orch := engage.New(sessions, engine, gen, dispatcher, engage.Options{
		MaxTurns:   cfg.MaxTurns,
		QuietTurns: cfg.QuietTurns,
		Archive:    archive,
		Publisher:  publisher,
	}, slog.Default())

	srv := api.NewServer(cfg.Port, cfg.APIKey, orch, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("lure ready",
		"port", cfg.Port,
		"scam_threshold", cfg.ScamThreshold,
		"max_turns", cfg.MaxTurns,
	)

	// Graceful shutdown: stop accepting requests, then let in-flight
	// callback deliveries finish.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown error", "error", err)
	}
	orch.Drain()
	cancel()
	slog.Info("lure stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
