package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Setenv("DECISIONS_API_URL", "http://localhost:8000/")
	t.Setenv("DECISIONS_DB_PATH", "./data/decisions.db")
	t.Setenv("PORT", "5174")
	t.Setenv("POLL_INTERVAL", "3s")
	t.Setenv("POLL_MAX_ATTEMPTS", "60")
	t.Setenv("HEALTH_PROBE", "http")
	t.Setenv("HEALTH_INTERVAL", "30000")
	t.Setenv("HEALTH_TIMEOUT", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.APIBaseURL != "http://localhost:8000" {
		t.Errorf("APIBaseURL = %q, want trailing slash trimmed", cfg.APIBaseURL)
	}
	if cfg.Poll.Interval != 3*time.Second || cfg.Poll.MaxAttempts != 60 {
		t.Errorf("Poll = %+v", cfg.Poll)
	}
	if cfg.Health.Interval != 30*time.Second {
		t.Errorf("Health.Interval = %v, want 30s from milliseconds", cfg.Health.Interval)
	}
	if !cfg.IsDevelopment() {
		t.Error("expected localhost backend to be development")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			APIBaseURL:     "https://decisions.example.com",
			DBPath:         "state.db",
			Port:           "5174",
			RequestTimeout: time.Second,
			Poll:           PollConfig{Interval: time.Second, MaxAttempts: 1},
			Health:         HealthConfig{Probe: ProbeHTTP, Interval: time.Second, Timeout: time.Second},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "relative url", mutate: func(c *Config) { c.APIBaseURL = "/api" }, wantErr: true},
		{name: "no db path", mutate: func(c *Config) { c.DBPath = "" }, wantErr: true},
		{name: "zero polls", mutate: func(c *Config) { c.Poll.MaxAttempts = 0 }, wantErr: true},
		{name: "grpc without addr", mutate: func(c *Config) { c.Health.Probe = ProbeGRPC }, wantErr: true},
		{name: "grpc with addr", mutate: func(c *Config) {
			c.Health.Probe = ProbeGRPC
			c.Health.GRPCAddr = "localhost:50051"
		}},
		{name: "unknown probe", mutate: func(c *Config) { c.Health.Probe = "icmp" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
