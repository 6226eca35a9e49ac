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
	"social/internal/gateway"
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

	routes, err := gateway.Routes(cfg.Gateway)
	if err != nil {
		logger.Error("invalid gateway route table", "error", err)
		os.Exit(1)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL)
	dispatcher := gateway.New(routes, tokens, logger)

	global := ratelimit.NewPointLimiter(redisClient, cfg.RateLimit.GlobalPoints, cfg.RateLimit.GlobalWindow)
	window := ratelimit.NewWindowLimiter(redisClient, "gateway", cfg.RateLimit.GatewayMax, cfg.RateLimit.SensitiveWindow)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.GatewayPort,
		Handler: gateway.NewRouter(dispatcher, global, window, logger),
	}

	go func() {
		logger.Info("api gateway running", "port", cfg.HTTP.GatewayPort,
			"identity", cfg.Gateway.IdentityURL,
			"post", cfg.Gateway.PostURL,
			"media", cfg.Gateway.MediaURL,
			"search", cfg.Gateway.SearchURL,
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api gateway")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
}
