package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/enrollhub/enrollhub/internal/api"
	"github.com/enrollhub/enrollhub/internal/app"
	"github.com/enrollhub/enrollhub/internal/observability"
	"github.com/enrollhub/enrollhub/internal/platform/cache"
	"github.com/enrollhub/enrollhub/internal/portal"
	"github.com/enrollhub/enrollhub/internal/shared"
	"github.com/enrollhub/enrollhub/internal/view"
	"github.com/enrollhub/enrollhub/internal/workspace"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(&cfg.ClientConfig)

	redisClient, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "enrollhub_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	client := api.NewClient(api.Options{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.APITimeout,
		Observer: metrics,
		Logger:   logger,
	})

	workspaces := workspace.NewRegistry(client, logger, cfg.WorkspaceIdleTTL)
	go workspaces.Run(ctx, time.Minute)
	metrics.TrackGauge("enrollhub_workspaces", "Browser sessions holding a live workspace.", func() float64 {
		return float64(workspaces.Len())
	})

	portalHandler := portal.NewHandler(portal.Params{
		Logger:     logger,
		Templates:  templates,
		Sessions:   sessionManager,
		CSRF:       csrfManager,
		Workspaces: workspaces,
		Metrics:    metrics,
		AdminURL:   cfg.AdminURL,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Portal:         portalHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server starting", slog.String("addr", cfg.AppAddr), slog.String("api", cfg.APIBaseURL))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
