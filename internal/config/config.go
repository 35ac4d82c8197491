package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	defaultHTTPPort       = "8080"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultOpenAITimeout  = 30
	defaultAgentTimeout   = 60
	defaultMinioEndpoint  = "localhost:9000"
	defaultMinioBucket    = "claim-documents"
	defaultSweepSchedule  = "@every 1m"
	defaultMaxUploadBytes = 10 * 1024 * 1024
)

type Config struct {
	HTTPPort            string
	PostgresDSN         string
	OpenAIAPIKey        string
	OpenAIModel         string
	OpenAITimeoutSec    int
	AgentTimeoutSec     int
	MinioEndpoint       string
	MinioAccessKey      string
	MinioSecretKey      string
	MinioBucket         string
	MinioUseSSL         bool
	ReviewTTLMinutes    int
	ReviewSweepSchedule string
	AllowedUploadBytes  int64
}

// Load reads configuration from the environment. POSTGRES_DSN and the MinIO
// credentials are optional: without them the service runs on the in-memory
// store and rejects document uploads.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:            getenv("HTTP_PORT", defaultHTTPPort),
		PostgresDSN:         os.Getenv("POSTGRES_DSN"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:         getenv("OPENAI_MODEL", defaultOpenAIModel),
		OpenAITimeoutSec:    getenvInt("OPENAI_TIMEOUT_SEC", defaultOpenAITimeout),
		AgentTimeoutSec:     getenvInt("AGENT_TIMEOUT_SEC", defaultAgentTimeout),
		MinioEndpoint:       getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:      os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:      os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:         getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:         getenvBool("MINIO_USE_SSL", false),
		ReviewTTLMinutes:    getenvInt("REVIEW_TTL_MINUTES", 0),
		ReviewSweepSchedule: getenv("REVIEW_SWEEP_SCHEDULE", defaultSweepSchedule),
		AllowedUploadBytes:  int64(getenvInt("MAX_UPLOAD_BYTES", defaultMaxUploadBytes)),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

// MinioConfigured reports whether object storage credentials are present.
func (c Config) MinioConfigured() bool {
	return c.MinioAccessKey != "" && c.MinioSecretKey != ""
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
