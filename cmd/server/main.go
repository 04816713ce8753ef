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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/hongminglow/chat-be/internal/config"
	"github.com/hongminglow/chat-be/internal/logging"
	"github.com/hongminglow/chat-be/internal/ratelimit"
	"github.com/hongminglow/chat-be/internal/server"
	"github.com/hongminglow/chat-be/internal/storage"
	"github.com/hongminglow/chat-be/internal/storage/memory"
	"github.com/hongminglow/chat-be/internal/storage/postgres"
	"github.com/hongminglow/chat-be/internal/storage/sqlite"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := logging.Init(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file found; relying on existing environment")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	// No connection survives a restart, so nobody can still be online.
	if err := store.ResetPresence(ctx); err != nil {
		return fmt.Errorf("reset presence: %w", err)
	}

	limiter, closeLimiter, err := openLimiter(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init rate limiter: %w", err)
	}
	defer closeLimiter()

	srv := server.New(cfg, store, limiter)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("chat backend listening", "addr", cfg.HTTPAddress(), "storage", cfg.StorageDriver)
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		return sqlite.NewStore(cfg.SQLitePath)
	case config.DriverMemory:
		return memory.NewStore(), nil
	default:
		return postgres.NewStore(ctx, cfg.DatabaseURL)
	}
}

func openLimiter(ctx context.Context, cfg config.Config) (ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewTokenBucketLimiter(cfg.RateLimitBurst, cfg.RateLimitWindow), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(client, "chat:ratelimit", cfg.RateLimitBurst, cfg.RateLimitWindow)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return limiter, func() { _ = client.Close() }, nil
}
