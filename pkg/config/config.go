// Package config loads the environment-variable contract the search
// orchestrator runs under.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the fully-resolved environment configuration for one process.
type Config struct {
	HTTPPort string
	LogLevel string

	SessionCookieSecret string
	JWTSecret           string
	CookieSameSite      string
	CookieDomain        string

	DatabaseURL string
	RedisURL    string
	LLMGRPCAddr string

	SlackWebhookURL string

	DedupRunningMaxAge      time.Duration
	DedupSuccessFreshWindow time.Duration

	AssistantSSETimeout   time.Duration
	AssistantPollInterval time.Duration

	WSHeartbeatInterval time.Duration
	WSOutboundQueueMax  int

	ProviderTextSearchTimeout time.Duration
	ProviderNearbyTimeout     time.Duration
	ProviderFindPlaceTimeout  time.Duration
	ProviderRetryAttempts     int
	ProviderRetryBackoff      []time.Duration

	DefaultRegion string
}

// getEnv returns the value of key, or defaultValue if unset/empty.
func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvMS(key string, defaultMS int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Millisecond
		}
		slog.Warn("invalid duration env var, using default", "key", key, "value", v)
	}
	return time.Duration(defaultMS) * time.Millisecond
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("invalid int env var, using default", "key", key, "value", v)
	}
	return defaultValue
}

// getEnvBackoffMS parses a bracketed, comma-separated millisecond list
// such as "[0,300]" into a backoff vector.
func getEnvBackoffMS(key string, defaultValue []int) []time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		out := make([]time.Duration, len(defaultValue))
		for i, v := range defaultValue {
			out[i] = time.Duration(v) * time.Millisecond
		}
		return out
	}
	parts := strings.Split(strings.Trim(raw, "[]"), ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			slog.Warn("invalid backoff entry, skipping", "key", key, "value", p)
			continue
		}
		out = append(out, time.Duration(n)*time.Millisecond)
	}
	if len(out) == 0 {
		out = []time.Duration{0, 300 * time.Millisecond}
	}
	return out
}

// Load reads the .env file at configDir/.env (if present) and then
// resolves every setting from the process environment, applying the
// defaults given in the external interface contract.
func Load(configDir string) (*Config, error) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("no .env file loaded, continuing with process environment", "path", envPath, "error", err)
	} else {
		slog.Info("loaded environment file", "path", envPath)
	}

	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		SessionCookieSecret: os.Getenv("SESSION_COOKIE_SECRET"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		CookieSameSite:      getEnv("COOKIE_SAMESITE", "Lax"),
		CookieDomain:        os.Getenv("COOKIE_DOMAIN"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LLMGRPCAddr: getEnv("LLM_GRPC_ADDR", "localhost:50051"),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),

		DedupRunningMaxAge:      getEnvMS("DEDUP_RUNNING_MAX_AGE_MS", 90000),
		DedupSuccessFreshWindow: getEnvMS("DEDUP_SUCCESS_FRESH_WINDOW_MS", 5000),

		AssistantSSETimeout:   getEnvMS("ASSISTANT_SSE_TIMEOUT_MS", 20000),
		AssistantPollInterval: getEnvMS("ASSISTANT_POLL_INTERVAL_MS", 400),

		WSHeartbeatInterval: getEnvMS("WS_HEARTBEAT_INTERVAL_MS", 30000),
		WSOutboundQueueMax:  getEnvInt("WS_OUTBOUND_QUEUE_MAX", 256),

		ProviderTextSearchTimeout: getEnvMS("PROVIDER_TEXTSEARCH_TIMEOUT_MS", 4000),
		ProviderNearbyTimeout:     getEnvMS("PROVIDER_NEARBY_TIMEOUT_MS", 4000),
		ProviderFindPlaceTimeout:  getEnvMS("PROVIDER_FINDPLACE_TIMEOUT_MS", 3000),
		ProviderRetryAttempts:     getEnvInt("PROVIDER_RETRY_ATTEMPTS", 3),
		ProviderRetryBackoff:      getEnvBackoffMS("PROVIDER_RETRY_BACKOFF_MS", []int{0, 300}),

		DefaultRegion: getEnv("DEFAULT_REGION", "IL"),
	}

	if cfg.SessionCookieSecret == "" {
		return nil, fmt.Errorf("SESSION_COOKIE_SECRET is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}
