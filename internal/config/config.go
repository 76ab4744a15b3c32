package config

import (
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config holds process configuration read from the environment
type Config struct {
	MongoURI  string
	MongoDB   string
	RedisAddr string
	HTTPPort  string
	LogLevel  string

	TemplateCacheTTL  time.Duration
	ExecutionCacheTTL time.Duration

	Evidence EvidenceConfig

	CORSAllowedOrigins string
}

// EvidenceConfig selects the evidence store. An empty bucket means the
// in-memory store.
type EvidenceConfig struct {
	Bucket   string
	Region   string
	Endpoint string // MinIO, LocalStack
	Prefix   string
}

func Load() *Config {
	return &Config{
		MongoURI:  getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:   getEnv("MONGO_DB", "fieldcheck"),
		RedisAddr: strings.TrimPrefix(getEnv("REDIS_ADDR", "localhost:6379"), "redis://"),
		HTTPPort:  getEnv("HTTP_PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),

		TemplateCacheTTL:  getDuration("TEMPLATE_CACHE_TTL", 24*time.Hour),
		ExecutionCacheTTL: getDuration("EXECUTION_CACHE_TTL", 2*time.Hour),

		Evidence: EvidenceConfig{
			Bucket:   getEnv("EVIDENCE_BUCKET", ""),
			Region:   getEnv("EVIDENCE_REGION", "us-east-1"),
			Endpoint: getEnv("EVIDENCE_ENDPOINT", ""),
			Prefix:   getEnv("EVIDENCE_PREFIX", "evidence/"),
		},

		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
	}
}

// SlogLevel maps LOG_LEVEL onto a slog level; unknown values mean info
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		slog.Warn("Ignoring invalid duration", slog.String("key", key), slog.String("value", val))
		return defaultVal
	}
	return d
}
