// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/yourusername/resume-forge/internal/auth"
	"github.com/yourusername/resume-forge/internal/config"
	"github.com/yourusername/resume-forge/internal/jobs"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	manager, err := setupJobs(cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up job pipeline", zap.Error(err))
	}

	// EMBED_WORKER=true の場合はAPIプロセス内でワーカーも動かす
	if cfg.EmbedWorker {
		manager.StartWorkers()
		logger.Info("embedded worker started",
			zap.Int("concurrency", cfg.WorkerConcurrency),
		)
	}

	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
	}
	router.Use(cors.New(corsConfig))

	setupRoutes(router, cfg, manager)

	// サーバーの起動
	addr := ":" + cfg.Port
	logger.Info("starting API server",
		zap.String("addr", addr),
		zap.String("mode", cfg.GinMode),
	)
	if err := router.Run(addr); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = manager.Shutdown(shutdownCtx)
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "resume-forge-api",
		"version": "0.1.0",
	})
}

// setupRoutes はジョブAPIと認証周りの配線を行います。
// 認証は APP_USERNAME / APP_PASSWORD_HASH が設定されている場合のみ有効です。
func setupRoutes(router *gin.Engine, cfg *config.Config, manager *jobs.Manager) {
	// 誰でも叩ける監視系エンドポイント
	router.GET("/health", handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var guard gin.HandlerFunc = func(c *gin.Context) { c.Next() }

	if cfg.AuthEnabled() {
		// セッションストアの設定（クッキー署名鍵は必須）
		store := cookie.NewStore([]byte(cfg.SessionSecret))
		store.Options(sessions.Options{
			Path:     "/",
			MaxAge:   auth.SessionMaxAgeSeconds(),
			HttpOnly: true,
			Secure:   cfg.GinMode == gin.ReleaseMode,
			SameSite: http.SameSiteStrictMode,
		})
		router.Use(sessions.Sessions(auth.SessionCookieName, store))

		authManager := auth.NewManager(cfg)
		authRoutes := router.Group("/auth")
		{
			authRoutes.POST("/login", authManager.Login)
			authRoutes.POST("/logout", authManager.RequireLogin(), authManager.Logout)
		}
		guard = authManager.RequireLogin()
	}

	router.POST("/", guard, jobs.UploadHandler(manager))
	router.GET("/status/:jobId", guard, jobs.StatusHandler(manager))
	router.GET("/download/:jobId", guard, jobs.DownloadHandler(manager))
}
