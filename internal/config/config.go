// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Health probe kinds.
const (
	ProbeHTTP = "http"
	ProbeGRPC = "grpc"
)

// Config holds all application configuration.
type Config struct {
	APIBaseURL     string
	DBPath         string
	Port           string
	AllowedOrigins []string
	LogLevel       string
	RequestTimeout time.Duration
	Poll           PollConfig
	Health         HealthConfig
}

// PollConfig controls analysis status polling.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
}

// HealthConfig controls connectivity monitoring.
type HealthConfig struct {
	Probe               string // "http" probes APIBaseURL/health, "grpc" uses grpc.health.v1
	GRPCAddr            string
	Interval            time.Duration
	Timeout             time.Duration
	OnlineCheckInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		APIBaseURL:     strings.TrimRight(getEnv("DECISIONS_API_URL", "http://localhost:8000"), "/"),
		DBPath:         getEnv("DECISIONS_DB_PATH", "./data/decisions.db"),
		Port:           getEnv("PORT", "5174"),
		AllowedOrigins: splitAndTrim(getEnv("ALLOWED_ORIGINS", "*")),
		LogLevel:       strings.ToLower(getEnv("LOG_LEVEL", "info")),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		Poll: PollConfig{
			Interval:    getEnvDuration("POLL_INTERVAL", 3*time.Second),
			MaxAttempts: getEnvInt("POLL_MAX_ATTEMPTS", 60),
		},
		Health: HealthConfig{
			Probe:               strings.ToLower(getEnv("HEALTH_PROBE", ProbeHTTP)),
			GRPCAddr:            getEnv("HEALTH_GRPC_ADDR", ""),
			Interval:            getEnvDuration("HEALTH_INTERVAL", 30*time.Second),
			Timeout:             getEnvDuration("HEALTH_TIMEOUT", 5*time.Second),
			OnlineCheckInterval: getEnvDuration("ONLINE_CHECK_INTERVAL", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("DECISIONS_API_URL must be an absolute URL, got %q", c.APIBaseURL)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DECISIONS_DB_PATH cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be > 0")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be > 0")
	}
	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("POLL_MAX_ATTEMPTS must be > 0")
	}
	if c.Health.Interval <= 0 || c.Health.Timeout <= 0 {
		return fmt.Errorf("HEALTH_INTERVAL and HEALTH_TIMEOUT must be > 0")
	}
	switch c.Health.Probe {
	case ProbeHTTP:
	case ProbeGRPC:
		if c.Health.GRPCAddr == "" {
			return fmt.Errorf("HEALTH_GRPC_ADDR is required when HEALTH_PROBE=grpc")
		}
	default:
		return fmt.Errorf("HEALTH_PROBE must be %q or %q, got %q", ProbeHTTP, ProbeGRPC, c.Health.Probe)
	}
	return nil
}

// IsDevelopment returns true if the API points at a local backend.
func (c *Config) IsDevelopment() bool {
	return strings.Contains(c.APIBaseURL, "localhost") ||
		strings.Contains(c.APIBaseURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

// getEnvDuration accepts Go duration strings ("3s") or plain milliseconds ("3000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
