// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// Redis設定（Blobストアとジョブキューで共用）
	RedisURL string // Redis接続URL

	// ファイル制限
	MaxFileSize int64 // 単一ファイルの最大サイズ（バイト）

	// ジョブ/キュー設定
	BlobTTL           time.Duration // アップロードファイルと結果のRedis保持期間
	JobTimeout        time.Duration // 1ジョブあたりのハードタイムアウト
	WorkerConcurrency int           // Asynqワーカーの並列度（ジョブ単位）
	FileParallelism   int           // 1ジョブ内のファイル処理並列度
	EmbedWorker       bool          // APIプロセス内でワーカーを起動するか

	// AI設定
	GeminiAPIKey string // Gemini APIキー（未設定時はAI抽出をスキップ）
	GeminiModel  string // 使用するGeminiモデル名
	AIMaxRetries int    // AI呼び出しのリトライ回数

	// 認証設定（未設定の場合はログイン不要で公開）
	AppUsername     string // ログイン用ユーザー名
	AppPasswordHash string // bcryptでハッシュ化されたパスワード
	SessionSecret   string // セッション署名用の秘密鍵
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	loadEnvFile()

	config := &Config{
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),

		RedisURL: getEnv("REDIS_URL", "redis://127.0.0.1:6379/0"),

		// Redisのペイロード上限を考慮した20MB（原設計の値）
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 20_000_000),

		BlobTTL:           time.Duration(getEnvAsInt("BLOB_TTL_MINUTES", 60)) * time.Minute,
		JobTimeout:        time.Duration(getEnvAsInt("JOB_TIMEOUT_MINUTES", 30)) * time.Minute,
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		FileParallelism:   getEnvAsInt("FILE_PARALLELISM", 3),
		EmbedWorker:       getEnvAsBool("EMBED_WORKER", true),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AIMaxRetries: getEnvAsInt("AI_MAX_RETRIES", 3),

		AppUsername:     getEnv("APP_USERNAME", ""),
		AppPasswordHash: getEnv("APP_PASSWORD_HASH", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// AuthEnabled はログインを要求する設定になっているかを返します。
func (c *Config) AuthEnabled() bool {
	return c.AppUsername != "" && c.AppPasswordHash != ""
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("MAX_FILE_SIZE must be positive")
	}
	if c.BlobTTL <= 0 {
		return fmt.Errorf("BLOB_TTL_MINUTES must be positive")
	}
	if c.JobTimeout <= 0 {
		return fmt.Errorf("JOB_TIMEOUT_MINUTES must be positive")
	}

	// ローカル開発では緩め、本番環境では厳格にチェックする
	if c.GinMode == "release" {
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required in release mode")
		}
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in release mode")
		}
		if c.AuthEnabled() && c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required when login is enabled")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します。
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
