package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ArnavT27/Chat-Application/internal/api"
	"github.com/ArnavT27/Chat-Application/internal/api/middleware"
	"github.com/ArnavT27/Chat-Application/internal/assets"
	"github.com/ArnavT27/Chat-Application/internal/call"
	"github.com/ArnavT27/Chat-Application/internal/chat"
	"github.com/ArnavT27/Chat-Application/internal/config"
	"github.com/ArnavT27/Chat-Application/internal/handlers"
	"github.com/ArnavT27/Chat-Application/internal/presence"
	"github.com/ArnavT27/Chat-Application/internal/store"
	"github.com/ArnavT27/Chat-Application/internal/ws"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Initialize durable store: Postgres when configured, SQLite otherwise
	var (
		st  store.DataStore
		err error
	)
	if cfg.DatabaseURL != "" {
		st, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		st, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("using SQLite store")
	}
	defer st.Close()

	// Initialize Redis (backs rate limiting; optional in development)
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid REDIS_URL")
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer rdb.Close()
		logger.Info().Msg("connected to Redis")
	}

	// Asset store for image payloads
	assetStore, err := assets.NewDiskStore(cfg.AssetDir, "/assets/")
	if err != nil {
		logger.Fatal().Err(err).Msg("asset dir setup failed")
	}

	// Socket hub, presence and call signaling
	registry := presence.NewRegistry()
	hub := ws.NewHub(registry, logger, originChecker(cfg))
	coordinator := call.NewCoordinator(hub, logger)
	hub.SetCallRouter(coordinator)

	// Message pipeline
	svc := chat.NewService(st, assetStore, hub, registry, logger)

	h := handlers.NewHandler(svc, st, rdb)

	// Create router
	router := api.NewRouter(api.Deps{
		Logger:         logger,
		Store:          st,
		Redis:          rdb,
		Handler:        h,
		Hub:            hub,
		AssetDir:       assetStore.Dir(),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit: middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
		},
	})

	// Create server
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// originChecker allows socket upgrades from the configured origins.
// Development keeps the permissive default so local tooling can connect.
func originChecker(cfg *config.Config) func(*http.Request) bool {
	if cfg.IsDevelopment() {
		return func(*http.Request) bool { return true }
	}
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		return allowed[r.Header.Get("Origin")]
	}
}
