package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"social/internal/bus"
	"social/internal/cache"
	"social/internal/config"
	"social/internal/events"
	"social/internal/infrastructure/postgres"
	redisinfra "social/internal/infrastructure/redis"
	"social/internal/ratelimit"
	"social/internal/search"
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

	eventBus, err := bus.Connect(ctx, bus.Config{
		Brokers:    cfg.Kafka.Brokers,
		Exchange:   cfg.Kafka.Exchange,
		Service:    "search-service",
		MaxRetries: cfg.Kafka.ConnectRetries,
		RetryDelay: cfg.Kafka.ConnectDelay,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to event bus", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	coordinator := cache.NewCoordinator(cache.NewRedisStore(redisClient), logger)
	repo := search.NewRepository(pgPool)

	consumer := search.NewConsumer(repo, coordinator, logger)
	eventBus.Subscribe(ctx, events.PostCreated, consumer.HandlePostCreated)
	eventBus.Subscribe(ctx, events.PostDeleted, consumer.HandlePostDeleted)

	handlers := search.NewHandlers(repo, coordinator, logger)
	global := ratelimit.NewPointLimiter(redisClient, cfg.RateLimit.GlobalPoints, cfg.RateLimit.GlobalWindow)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.SearchPort,
		Handler: search.NewRouter(handlers, global, logger),
	}

	go func() {
		logger.Info("search service running", "port", cfg.HTTP.SearchPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down search service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
}
