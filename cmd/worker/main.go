// Package main は専用ワーカープロセスのエントリーポイントです。
// APIサーバー側で EMBED_WORKER=false にした場合にこちらを起動します。
package main

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/resume-forge/internal/ai"
	"github.com/yourusername/resume-forge/internal/blob"
	"github.com/yourusername/resume-forge/internal/config"
	"github.com/yourusername/resume-forge/internal/jobs"
	"github.com/yourusername/resume-forge/internal/resume"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.GinMode == gin.ReleaseMode {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("failed to parse redis url", zap.Error(err))
	}
	store := blob.NewRedisStore(redis.NewClient(opt))

	var extractor resume.Extractor
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, AI extraction is disabled")
		extractor = ai.Disabled{}
	} else {
		client, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AIMaxRetries, logger)
		if err != nil {
			logger.Fatal("failed to create AI client", zap.Error(err))
		}
		extractor = client
	}

	manager, err := jobs.NewManager(cfg, store, resume.NewService(extractor, logger), logger)
	if err != nil {
		logger.Fatal("failed to set up job pipeline", zap.Error(err))
	}

	logger.Info("starting worker",
		zap.Int("concurrency", cfg.WorkerConcurrency),
	)
	// シグナル処理はAsynqサーバー側が行う
	if err := manager.RunWorkers(); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
}
