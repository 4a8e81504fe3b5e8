package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// HTTP API設定
	HTTP HTTPConfig

	// カタログ参照API設定
	Catalog CatalogConfig

	// 類似判定用LLM設定
	OpenAI OpenAIConfig

	// パイプライン調整値
	Pipeline PipelineConfig
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// HTTPConfig はHTTPサーバ設定
type HTTPConfig struct {
	Addr     string
	APIToken string // 空の場合は認証なし
}

// CatalogConfig はカタログ参照APIの設定
type CatalogConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// OpenAIConfig は類似判定に使うOpenAI API設定
type OpenAIConfig struct {
	APIKey string
	Model  string
}

// PipelineConfig は関連付けパイプラインの調整値
type PipelineConfig struct {
	// JudgeConcurrency は類似判定の同時実行数
	JudgeConcurrency int
	// SimilarCandidateCap は類似候補の評価上限数
	SimilarCandidateCap int
	// SearchResultLimit は属性検索の取得上限数
	SearchResultLimit int
	// VariationBatchSize はバリエーション取得のバッチサイズ（プロバイダの上限）
	VariationBatchSize int
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "correlate"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "correlate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		HTTP: HTTPConfig{
			Addr:     getEnv("HTTP_ADDR", ":8080"),
			APIToken: getEnv("CORRELATE_API_TOKEN", ""),
		},
		Catalog: CatalogConfig{
			BaseURL: getEnv("CATALOG_BASE_URL", "https://api.keepa.com"),
			APIKey:  getEnv("CATALOG_API_KEY", ""),
			Timeout: time.Duration(getEnvAsInt("CATALOG_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		OpenAI: OpenAIConfig{
			APIKey: getEnv("OPENAI_API_KEY", ""),
			Model:  getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
		},
		Pipeline: PipelineConfig{
			JudgeConcurrency:    getEnvAsInt("JUDGE_CONCURRENCY", 5),
			SimilarCandidateCap: getEnvAsInt("SIMILAR_CANDIDATE_CAP", 30),
			SearchResultLimit:   getEnvAsInt("SEARCH_RESULT_LIMIT", 50),
			VariationBatchSize:  getEnvAsInt("VARIATION_BATCH_SIZE", 100),
		},
	}

	return cfg, nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
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
