// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/meridianhq/meridian/internal/api"
	"github.com/meridianhq/meridian/internal/cache"
	"github.com/meridianhq/meridian/internal/models"
	"github.com/meridianhq/meridian/internal/resourceservice"
	"github.com/meridianhq/meridian/internal/sse"
	"github.com/meridianhq/meridian/internal/store"
	"github.com/meridianhq/meridian/internal/webhook"
)

// notifierFanout forwards each event to every sink.
type notifierFanout []resourceservice.Notifier

func (n notifierFanout) Publish(evt models.Event) {
	for _, sink := range n {
		sink.Publish(evt)
	}
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("auth_enabled", cfg.Auth.AuthEnabled()),
		slog.Bool("cache_enabled", cfg.Cache.Enabled()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Initialize storage.
	st, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	// Optional Redis read-through cache.
	var rc cache.Cache = cache.Noop()
	if cfg.Cache.Enabled() {
		redisCache, err := cache.NewRedis(ctx, cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("init cache: %w", err)
		}
		defer redisCache.Close()
		rc = redisCache
	}

	// Webhook registry and dispatcher.
	registry := webhook.NewRegistry(st)
	dispatcher := webhook.NewDispatcher(registry, logger, webhook.Options{
		Workers:    cfg.Webhooks.Workers,
		QueueSize:  cfg.Webhooks.QueueSize,
		Timeout:    cfg.Webhooks.Timeout,
		MaxRetries: cfg.Webhooks.MaxRetries,
	})

	// SSE broker.
	broker := sse.NewBroker()
	defer broker.Close()

	// Build domain service and router.
	svc := resourceservice.NewService(st, rc, notifierFanout{dispatcher, broker})
	limiter := api.NewRateLimiter(cfg.RateLimit.PerHour, cfg.RateLimit.BurstPerMin)
	apiRouter := api.NewRouter(svc, registry, cfg.Auth.AuthEnabled(), cfg.Auth.Keys, limiter, broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /v1.
	r.Mount("/v1", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Start webhook delivery workers.
	g.Go(func() error {
		return dispatcher.Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Release the webhook workers once the server has drained.
		stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}
