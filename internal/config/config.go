// Package config loads memoryd's runtime configuration from the
// environment, following the env+dotenv convention used across the
// manifold codebase rather than its legacy YAML loader.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string
	LogLevel string

	SimilarityThreshold float64
	EmbeddingDimensions int
	CallTimeout         time.Duration

	AI AIConfig

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	DatabaseURL string

	KafkaBrokers  string
	KafkaTopic    string
	KafkaGroupID  string
	KafkaDLQTopic string

	RedisURL string

	CuratorSchedule string
	CuratorBatchW   int
	CuratorCapK     int
	CuratorDeadline time.Duration
}

type AIConfig struct {
	EdgeBaseURL        string
	EdgeAPIKey         string
	EdgeModel          string
	EdgeReasoningModel string

	OpenAIAPIKey         string
	OpenAIModel          string
	OpenAIEmbeddingModel string

	GoogleAPIKey string
	GoogleModel  string

	GatewayPrefix string
}

// Load reads a local .env file if present (via godotenv.Overload, so its
// values replace variables already set in the process environment) and
// populates Config from os.Getenv, applying defaults for anything unset
// or empty.
func Load() (Config, error) {
	_ = godotenv.Overload()

	cfg := Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		AI: AIConfig{
			EdgeBaseURL:          getEnv("AI_EDGE_BASE_URL", "http://localhost:8000/v1"),
			EdgeAPIKey:           getEnv("AI_EDGE_API_KEY", ""),
			EdgeModel:            getEnv("AI_EDGE_MODEL", "local-structuring-model"),
			EdgeReasoningModel:   getEnv("AI_EDGE_REASONING_MODEL", "local-reasoning-model"),
			OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			OpenAIEmbeddingModel: getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-large"),
			GoogleAPIKey:         getEnv("GOOGLE_API_KEY", ""),
			GoogleModel:          getEnv("GOOGLE_MODEL", "gemini-1.5-flash"),
			GatewayPrefix:        getEnv("AI_GATEWAY_PREFIX", ""),
		},

		QdrantURL:        getEnv("QDRANT_URL", ""),
		QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("QDRANT_COLLECTION", "memoryd"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		KafkaBrokers:  getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "memoryd.ingest"),
		KafkaGroupID:  getEnv("KAFKA_GROUP_ID", "memoryd-consumer"),
		KafkaDLQTopic: getEnv("KAFKA_DLQ_TOPIC", "memoryd.ingest.dlq"),

		RedisURL: getEnv("REDIS_URL", ""),

		CuratorSchedule: getEnv("CURATOR_SCHEDULE_CRON", "0 3 * * *"),
	}

	var err error
	if cfg.SimilarityThreshold, err = getFloat("SIMILARITY_THRESHOLD", 0.92); err != nil {
		return Config{}, err
	}
	if cfg.EmbeddingDimensions, err = getInt("EMBEDDING_DIMENSIONS", 1024); err != nil {
		return Config{}, err
	}
	callTimeoutSeconds, err := getInt("CALL_TIMEOUT_SECONDS", 30)
	if err != nil {
		return Config{}, err
	}
	cfg.CallTimeout = time.Duration(callTimeoutSeconds) * time.Second

	if cfg.CuratorBatchW, err = getInt("CURATOR_BATCH_W", 20); err != nil {
		return Config{}, err
	}
	if cfg.CuratorCapK, err = getInt("CURATOR_CAP_K", 10); err != nil {
		return Config{}, err
	}
	deadlineSeconds, err := getInt("CURATOR_DEADLINE_SECONDS", 60)
	if err != nil {
		return Config{}, err
	}
	cfg.CuratorDeadline = time.Duration(deadlineSeconds) * time.Second

	if cfg.SimilarityThreshold <= 0 || cfg.SimilarityThreshold > 1 {
		return Config{}, fmt.Errorf("config: SIMILARITY_THRESHOLD must be in (0,1], got %v", cfg.SimilarityThreshold)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return n, nil
}

func getFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s=%q: %w", key, v, err)
	}
	return f, nil
}
