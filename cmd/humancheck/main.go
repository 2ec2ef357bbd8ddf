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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	hchttp "github.com/humancheck/humancheck/internal/adapter/http"
	"github.com/humancheck/humancheck/internal/adapter/mcp"
	hcnats "github.com/humancheck/humancheck/internal/adapter/nats"
	hcotel "github.com/humancheck/humancheck/internal/adapter/otel"
	"github.com/humancheck/humancheck/internal/adapter/postgres"
	"github.com/humancheck/humancheck/internal/adapter/ristretto"
	"github.com/humancheck/humancheck/internal/adapter/ws"
	"github.com/humancheck/humancheck/internal/config"
	"github.com/humancheck/humancheck/internal/logger"
	"github.com/humancheck/humancheck/internal/port/messagequeue"
	"github.com/humancheck/humancheck/internal/port/notifier"
	"github.com/humancheck/humancheck/internal/service"

	// Notifier adapters register themselves with the channel registry.
	_ "github.com/humancheck/humancheck/internal/adapter/email"
	_ "github.com/humancheck/humancheck/internal/adapter/slack"
	_ "github.com/humancheck/humancheck/internal/adapter/webhook"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logger.New(cfg.Logging)
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"notifier_channels", len(cfg.Notifiers),
	)

	ctx := context.Background()

	// --- Infrastructure ---

	// OpenTelemetry (no-op providers when no endpoint is configured)
	otelShutdown, err := hcotel.Init(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("otel shutdown failed", "error", err)
		}
	}()

	metrics, err := hcotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// PostgreSQL
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	// NATS (optional; the review workflow runs without the event bus)
	var queue messagequeue.Queue
	if cfg.NATS.URL != "" {
		q, err := hcnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable, event bus disabled", "error", err)
		} else {
			queue = q
			defer func() { _ = q.Close() }()
		}
	}

	// Rule snapshot cache
	ruleCache, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer ruleCache.Close()

	// Notifiers from config, one per configured target.
	notifiers := make(map[string]notifier.Notifier, len(cfg.Notifiers))
	for target, channel := range cfg.Notifiers {
		n, err := notifier.New(channel.Type, channel.Settings)
		if err != nil {
			return fmt.Errorf("notifier %s: %w", target, err)
		}
		notifiers[target] = n
		slog.Info("notifier configured", "target", target, "type", channel.Type)
	}

	// --- Services ---
	store := postgres.NewStore(pool)
	routingSvc := service.NewRoutingService(store, ruleCache, cfg.Cache.RuleTTL, log)
	dispatcher := service.NewDispatchService(store, queue, notifiers, cfg.Dispatch, log)
	dispatcher.SetMetrics(metrics)
	reviewSvc := service.NewReviewService(store, routingSvc, dispatcher, queue, cfg.Server.CORSOrigin, log)
	reviewSvc.SetMetrics(metrics)

	// Dashboard hub: lifecycle events straight from the service, delivery
	// outcomes relayed off the event bus.
	hub := ws.NewHub()
	reviewSvc.AddSink(hub)
	if queue != nil {
		cancelResults, err := queue.Subscribe(ctx, messagequeue.SubjectNotificationResult, hub.HandleNotificationResult)
		if err != nil {
			return fmt.Errorf("result subscriber: %w", err)
		}
		defer cancelResults()
	}

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "humancheck",
			Version: "0.1.0",
			APIKey:  cfg.MCP.APIKey,
		}, mcp.ServerDeps{Reviews: reviewSvc})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(stopCtx)
		}()
	}

	// --- HTTP ---
	handlers := &hchttp.Handlers{
		Reviews:    reviewSvc,
		Routing:    routingSvc,
		Dispatcher: dispatcher,
		DB:         pool,
	}

	r := chi.NewRouter()

	r.Use(hchttp.CORS(cfg.Server.CORSOrigin))
	r.Use(hcotel.HTTPMiddleware(cfg.Otel.ServiceName))
	r.Use(hchttp.RequestID)
	r.Use(hchttp.Logger)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	// WebSocket endpoint (outside the API timeout: connections are long-lived)
	r.Get("/ws", hub.HandleWS)

	hchttp.MountRoutes(r, handlers)

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Write timeout must exceed the longest decision wait window.
		WriteTimeout: 6 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
