// Legal Bot - chat bot session supervisor
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/igorpaiva/legal-bot-v3-sub001/internal/api"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/bridge"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/config"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/convo"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/delivery"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/domain"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/events"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/gate"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/identity"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/media"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/middleware"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/registry"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/store"
	"github.com/igorpaiva/legal-bot-v3-sub001/internal/supervisor"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting supervisor", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	runner, err := bridge.NewRunner(cfg.Bridge)
	if err != nil {
		slog.Error("Failed to initialize bridge runner", "error", err)
		os.Exit(1)
	}

	networkID, err := runner.EnsureNetwork(context.Background())
	if err != nil {
		slog.Error("Failed to ensure bridge network", "error", err)
		os.Exit(1)
	}
	slog.Info("Bridge network ready", "network_id", networkID)

	// Conversation service gRPC client (optional).
	var processor convo.Processor
	if cfg.ConvoAddr != "" {
		grpcClient, err := convo.NewGrpcClient(cfg.ConvoAddr, logger)
		if err != nil {
			slog.Warn("Failed to connect to conversation service, replies degrade to fallback", "error", err)
		} else {
			defer grpcClient.Close()
			processor = grpcClient
		}
	}
	if processor == nil {
		slog.Info("Conversation service disabled (CONVO_AGENT_ADDR not set or connection failed)")
	}

	// Media document store (optional).
	var uploader media.Uploader
	if cfg.MediaUploadURL != "" {
		uploader = media.NewHTTPUploader(cfg.MediaUploadURL, logger)
		slog.Info("Media uploads enabled", "url", cfg.MediaUploadURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()
	reg := registry.New()
	g := gate.New(cfg.Gate, processor, uploader, delivery.NewSender(cfg.Delivery), logger)
	sup := supervisor.New(ctx, cfg, reg, repo, runner, hub, g, logger)

	// Reconnect every session that was live before the last restart.
	recs, err := repo.LoadSessions(context.Background())
	if err != nil {
		slog.Error("Failed to load persisted sessions", "error", err)
		os.Exit(1)
	}
	var restoreWG sync.WaitGroup
	restored := 0
	for _, rec := range recs {
		if !rec.IsActive {
			continue
		}
		restored++
		restoreWG.Add(1)
		go func(rec *domain.SessionRecord) {
			defer restoreWG.Done()
			if err := sup.RestoreSession(ctx, rec); err != nil {
				slog.Error("Session restoration failed", "session_id", rec.ID, "error", err)
			}
		}(rec)
	}
	slog.Info("Session restoration started", "total", len(recs), "restoring", restored)
	go func() {
		restoreWG.Wait()
		slog.Info("Session restoration attempts finished", "restoring", restored)
	}()

	go sup.RunStuckMonitor(ctx)
	go sup.RunKeepAliveProber(ctx)

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	api.NewSessionHandler(sup, reg, repo, hub).RegisterRoutes(r)

	// WriteTimeout stays 0: /ws/events connections are long-lived.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	fatal := false
	select {
	case <-ctx.Done():
	case <-sup.Fatal():
		// A session event loop panicked; sessions are already torn down.
		fatal = true
		slog.Error("Fatal supervisor failure, exiting after teardown")
	}
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GlobalTimeout)
	defer cancel()

	sup.Shutdown(shutdownCtx)
	hub.CloseAll()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if fatal {
		os.Exit(1)
	}
	slog.Info("Supervisor stopped")
}
