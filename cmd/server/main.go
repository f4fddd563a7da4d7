package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"chat-core/internal/config"
	"chat-core/internal/database"
	"chat-core/internal/job"
	"chat-core/internal/presence"
	"chat-core/internal/repository"
	"chat-core/internal/router"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Starting chat-core",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("basePath", cfg.Server.BasePath))

	db, err := database.Connect(cfg, 10, 5*time.Second)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("PostgreSQL connected")

	// Redis is optional: without it authorization reads go straight to the
	// store and presence fails open.
	redisClient, err := database.NewRedis(cfg)
	if err != nil {
		logger.Warn("Redis unavailable, running degraded", zap.Error(err))
		redisClient = nil
	} else {
		logger.Info("Redis connected")
	}

	// Connection state from a previous run is meaningless after a restart;
	// clients that are still alive re-register as they reconnect.
	registry := presence.NewRegistry(redisClient, logger,
		time.Duration(cfg.Presence.ConnectionTTLMinutes)*time.Minute)
	if err := registry.Reset(context.Background()); err != nil {
		logger.Warn("presence reset failed", zap.Error(err))
	}

	cleanup := job.NewCleanupJob(repository.NewMessageRepository(db), logger)
	if err := cleanup.Start(); err != nil {
		logger.Fatal("Failed to start cleanup job", zap.Error(err))
	}
	defer cleanup.Stop()

	r := router.Setup(cfg, db, redisClient, logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("chat-core started", zap.String("address", addr))

	if err := r.Run(addr); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
