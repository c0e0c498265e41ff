package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/decoylabs/grift/internal/api"
	"github.com/decoylabs/grift/internal/archive"
	"github.com/decoylabs/grift/internal/config"
	"github.com/decoylabs/grift/internal/engage"
	"github.com/decoylabs/grift/internal/events"
	"github.com/decoylabs/grift/internal/gateway"
	"github.com/decoylabs/grift/internal/gemini"
	"github.com/decoylabs/grift/internal/report"
	"github.com/decoylabs/grift/internal/session"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("grift starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Credential slot pool: one slot per configured API key. The service
	// still runs with zero keys: every reply comes from the fallback.
	var completers []gateway.NamedCompleter
	for i, key := range cfg.GeminiAPIKeys {
		completers = append(completers, gateway.NamedCompleter{
			ID:     fmt.Sprintf("gemini-%d", i),
			Client: gemini.NewClient(key, cfg.GeminiModel),
		})
	}
	if len(completers) == 0 {
		slog.Warn("GEMINI_API_KEYS not set, all replies will use the fallback generator")
	}
	gw := gateway.New(completers, gateway.Options{
		Cooldown:         cfg.SlotCooldown,
		FailureThreshold: cfg.FailureThreshold,
		RequestTimeout:   cfg.RequestTimeout,
	}, slog.Default())
	slog.Info("inference gateway ready", "slots", len(completers), "model", cfg.GeminiModel)

	// Session store with idle eviction
	store := session.NewStore(cfg.SessionTTL, slog.Default())
	store.StartReaper(ctx)

	// Reporter (optional: without a callback URL, reports are built and
	// archived but not delivered)
	var reporter *report.Reporter
	if cfg.CallbackURL != "" {
		reporter = report.NewReporter(cfg.CallbackURL, slog.Default())
		slog.Info("reporter ready", "callback_url", cfg.CallbackURL)
	} else {
		slog.Warn("CALLBACK_URL not set, reports will not be delivered")
	}

	// Event bus (optional)
	var bus *events.Bus
	if cfg.NatsURL != "" {
		var err error
		bus, err = events.Connect(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer bus.Close()
		slog.Info("NATS connected", "url", cfg.NatsURL)
	}

	// Report archive (optional)
	var arch *archive.Archive
	if cfg.DatabaseURL != "" {
		var err error
		arch, err = archive.New(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer arch.Close()
		if err := arch.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare report archive", "error", err)
			os.Exit(1)
		}
		slog.Info("report archive ready")
	}

	// Conversation engine, the main pipeline
	engine := engage.New(store, gw, reporter, arch, bus, engage.Config{
		PanicTurns:    cfg.PanicTurns,
		TrustTurns:    cfg.TrustTurns,
		ReportAfter:   cfg.ReportAfter,
		HistoryWindow: cfg.HistoryWindow,
	}, slog.Default())

	// HTTP API
	var reports api.ReportLister
	if arch != nil {
		reports = arch
	}
	srv := api.NewServer(cfg.Port, engine, gw, store, reports, cfg.APIKey, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	if err := bus.Publish(events.SubjectRegistered, map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"port":      cfg.Port,
		"slots":     len(completers),
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("grift ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("grift stopped")
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
