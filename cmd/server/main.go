package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"signaling/internal/config"
	"signaling/internal/handlers"
	"signaling/internal/jobs"
	"signaling/internal/managers"
	"signaling/internal/routers"
	"signaling/internal/transport"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	hub := transport.NewHub(logger)
	registry := managers.NewRegistry()
	presence := managers.NewPresence(registry, hub, logger)
	relay := managers.NewRelay(registry, hub, logger)
	observers := managers.NewObservers(registry, hub, logger)

	var bridge *managers.Bridge
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		bridge = managers.NewBridge(rdb, registry, hub, logger)
		bridge.Start()
		presence.SetBridge(bridge)
		logger.Info("presence bridge enabled",
			zap.String("redisAddr", cfg.RedisAddr), zap.String("instanceId", bridge.InstanceID()))
	}

	h := handlers.New(hub, registry, presence, relay, observers, []byte(cfg.JWTSecret), logger)

	sweeper := jobs.NewRoomSweeper(registry, logger, cfg.SweepSchedule, cfg.RoomMaxIdle)
	if err := sweeper.Start(); err != nil {
		logger.Fatal("failed to start room sweeper", zap.Error(err))
	}

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     routers.NewRouter(h),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("signaling service starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChan

	logger.Info("signaling service shutting down...")

	sweeper.Stop()
	if bridge != nil {
		bridge.Close()
	}
	hub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("signaling service exited")
}
