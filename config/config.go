package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the orchestrator configuration.
type Config struct {
	Server       ServerConfig
	Auth         AuthConfig
	RateLimit    RateLimitConfig
	Orchestrator OrchestratorConfig
	Webhook      WebhookConfig
	Log          LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"

	// ShutdownTimeout bounds how long in-flight requests may drain.
	ShutdownTimeout time.Duration // default: 10s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// APIKeys lists accepted X-API-Key values. Empty means open access.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key. <= 0 disables limiting.
	RequestsPerSecond float64 // default: 0 (off)

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// OrchestratorConfig controls worker admission and invocation.
type OrchestratorConfig struct {
	// MaxConcurrent is the admission gate capacity.
	MaxConcurrent int // default: 2

	// DefaultTimeout is the per-run deadline when the request sets none.
	DefaultTimeout time.Duration // default: 60s

	// MaxTimeout caps a client-supplied timeout.
	MaxTimeout time.Duration // default: 300s

	// WorkerBin is the worker executable. Empty resolves next to the
	// orchestrator binary, then on PATH.
	WorkerBin string

	// MaxOutput caps captured stdout and stderr, each, in bytes.
	MaxOutput int // default: 1 MiB
}

// WebhookConfig controls completion notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads orchestrator configuration from the environment, after merging
// an optional .env file from the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Host:            envOr("PRICECHECK_HOST", "0.0.0.0"),
			Port:            envIntOr("PRICECHECK_PORT", 8000),
			Mode:            envOr("PRICECHECK_MODE", "release"),
			ShutdownTimeout: envDurationOr("PRICECHECK_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			APIKeys: envSliceOr("AUTOMATION_API_KEY", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICECHECK_RATE_RPS", 0),
			Burst:             envIntOr("PRICECHECK_RATE_BURST", 10),
		},
		Orchestrator: OrchestratorConfig{
			MaxConcurrent:  envIntOr("MAX_CONCURRENT_RUNS", 2),
			DefaultTimeout: envDurationOr("SCRIPT_TIMEOUT", 60*time.Second),
			MaxTimeout:     envDurationOr("SCRIPT_MAX_TIMEOUT", 300*time.Second),
			WorkerBin:      os.Getenv("WORKER_BIN"),
			MaxOutput:      envIntOr("WORKER_MAX_OUTPUT", 1<<20),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("WEBHOOK_URL"),
			Secret: os.Getenv("WEBHOOK_SECRET"),
		},
		Log: loadLog(),
	}
}

func loadLog() LogConfig {
	return LogConfig{
		Level:  envOr("PRICECHECK_LOG_LEVEL", "info"),
		Format: envOr("PRICECHECK_LOG_FORMAT", "json"),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// envDurationOr accepts Go duration syntax ("45s") or bare integer seconds ("45").
func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

// envMapOr parses "K=V,K2=V2" pairs. Malformed pairs are skipped.
func envMapOr(key string, fallback map[string]string) map[string]string {
	pairs := envSliceOr(key, nil)
	if len(pairs) == 0 {
		return fallback
	}
	result := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		result[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return result
}
