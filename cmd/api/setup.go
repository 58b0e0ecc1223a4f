package main

import (
	"context"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/yourusername/resume-forge/internal/ai"
	"github.com/yourusername/resume-forge/internal/blob"
	"github.com/yourusername/resume-forge/internal/config"
	"github.com/yourusername/resume-forge/internal/jobs"
	"github.com/yourusername/resume-forge/internal/resume"
)

// newLogger はGinのモードに合わせたzapロガーを作成します。
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.GinMode == gin.ReleaseMode {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// setupJobs はBlobストア、AI抽出、ジョブマネージャーを配線します。
func setupJobs(cfg *config.Config, logger *zap.Logger) (*jobs.Manager, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	store := blob.NewRedisStore(redis.NewClient(opt))

	extractor := newExtractor(cfg, logger)
	service := resume.NewService(extractor, logger)

	return jobs.NewManager(cfg, store, service, logger)
}

// newExtractor はGemini抽出クライアントを作成します。
// APIキーが未設定の場合は常に失敗する抽出器を返し、
// 各ファイルはプレースホルダー行として成果物に残ります。
func newExtractor(cfg *config.Config, logger *zap.Logger) resume.Extractor {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("GEMINI_API_KEY is not set, AI extraction is disabled")
		return ai.Disabled{}
	}
	client, err := ai.NewClient(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, cfg.AIMaxRetries, logger)
	if err != nil {
		logger.Error("failed to create AI client, AI extraction is disabled", zap.Error(err))
		return ai.Disabled{}
	}
	return client
}
