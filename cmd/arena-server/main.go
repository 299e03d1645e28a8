package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chess-arena/internal/config"
	"chess-arena/internal/hub"
	"chess-arena/internal/obslog"
	"chess-arena/internal/rating"
	"chess-arena/internal/room"
	"chess-arena/internal/rules"
	"chess-arena/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer func() { _ = obslog.L().Sync() }()

	// rating store: postgres when configured, in-memory otherwise
	var store rating.Store
	if cfg.DatabaseURL != "" {
		repo, err := rating.NewRepository(cfg.DatabaseURL)
		if err != nil {
			obslog.L().Fatal("database init error", zap.Error(err))
		}
		defer func() { _ = repo.Close() }()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := repo.EnsureSchema(ctx, cfg.BaseRating); err != nil {
			cancel()
			obslog.L().Fatal("schema init error", zap.Error(err))
		}
		cancel()
		store = repo
	} else {
		obslog.L().Warn("DATABASE_URL not set, ratings and game archive are in-memory only")
		store = rating.NewMemStore()
	}
	settler := rating.NewService(store, cfg.EloK, cfg.RatingFloor)

	// optional redis snapshot store
	var snaps *room.Store
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			obslog.L().Fatal("redis url error", zap.Error(err))
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			obslog.L().Fatal("redis ping error", zap.Error(err))
		}
		defer func() { _ = rdb.Close() }()
		snaps = room.NewStore(rdb, cfg.SnapshotTTL)
	} else {
		obslog.L().Warn("REDIS_URL not set, room snapshots disabled")
	}

	reg := hub.NewRegistry(cfg.OutboxSize, cfg.WriteTimeout)
	rooms := room.NewManager(rules.NewEngine(), reg, settler, snaps)
	srv := server.New(cfg, reg, rooms)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		obslog.L().Info("shutdown_signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.L().Fatal("serve error", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		obslog.L().Warn("shutdown error", zap.Error(err))
	}
}
