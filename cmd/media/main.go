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
	"social/internal/config"
	"social/internal/events"
	"social/internal/infrastructure/postgres"
	redisinfra "social/internal/infrastructure/redis"
	"social/internal/media"
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

	uploader, err := media.NewS3Uploader(ctx, media.S3Config{
		Endpoint:  cfg.Media.Endpoint,
		AccessKey: cfg.Media.AccessKey,
		SecretKey: cfg.Media.SecretKey,
		Bucket:    cfg.Media.Bucket,
		UseSSL:    cfg.Media.UseSSL,
	})
	if err != nil {
		logger.Error("failed to init object storage", "error", err)
		os.Exit(1)
	}

	eventBus, err := bus.Connect(ctx, bus.Config{
		Brokers:    cfg.Kafka.Brokers,
		Exchange:   cfg.Kafka.Exchange,
		Service:    "media-service",
		MaxRetries: cfg.Kafka.ConnectRetries,
		RetryDelay: cfg.Kafka.ConnectDelay,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to event bus", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	repo := media.NewRepository(pgPool)

	consumer := media.NewConsumer(repo, uploader, logger)
	eventBus.Subscribe(ctx, events.PostDeleted, consumer.HandlePostDeleted)

	handlers := media.NewHandlers(repo, uploader, logger)
	global := ratelimit.NewPointLimiter(redisClient, cfg.RateLimit.GlobalPoints, cfg.RateLimit.GlobalWindow)
	upload := ratelimit.NewWindowLimiter(redisClient, "media-upload", cfg.RateLimit.UploadMax, cfg.RateLimit.SensitiveWindow)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.MediaPort,
		Handler: media.NewRouter(handlers, global, upload, logger),
	}

	go func() {
		logger.Info("media service running", "port", cfg.HTTP.MediaPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down media service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
}
