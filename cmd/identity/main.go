package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social/internal/auth"
	"social/internal/config"
	"social/internal/identity"
	"social/internal/infrastructure/postgres"
	redisinfra "social/internal/infrastructure/redis"
	"social/internal/ratelimit"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("starting service", "app", cfg.App.Name, "version", cfg.App.Version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgPool, err := postgres.NewClient(ctx, postgres.Config{
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		DBName:   cfg.Postgres.DBName,
	})
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	redisClient, err := redisinfra.NewClient(ctx, redisinfra.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	repo := identity.NewRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	handlers := identity.NewHandlers(repo, txManager, tokens, cfg.Auth.RefreshTTL, logger)

	global := ratelimit.NewPointLimiter(redisClient, cfg.RateLimit.GlobalPoints, cfg.RateLimit.GlobalWindow)
	register := ratelimit.NewWindowLimiter(redisClient, "register", cfg.RateLimit.RegisterMax, cfg.RateLimit.SensitiveWindow)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.IdentityPort,
		Handler: identity.NewRouter(handlers, global, register, logger),
	}

	go func() {
		logger.Info("identity service running", "port", cfg.HTTP.IdentityPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down identity service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
}
