package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("DB_PATH", filepath.Join(dir, "db", "test.db"))
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_test")
	return dir
}

func TestLoadConfig(t *testing.T) {
	dir := setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("READ_TIMEOUT", "10s")
	t.Setenv("WRITE_TIMEOUT", "20s")
	t.Setenv("IDLE_TIMEOUT", "30s")
	t.Setenv("YOUTUBE_API_KEY", "yt-key")
	t.Setenv("YOUTUBE_TIMEOUT", "3s")
	t.Setenv("RATE_LIMIT_RPM", "120")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "9090" {
		t.Errorf("expected 9090, got %s", cfg.ServerPort)
	}
	if cfg.ReadTimeout != 10*time.Second {
		t.Errorf("expected 10s, got %s", cfg.ReadTimeout)
	}
	if cfg.WriteTimeout != 20*time.Second {
		t.Errorf("expected 20s, got %s", cfg.WriteTimeout)
	}
	if cfg.IdleTimeout != 30*time.Second {
		t.Errorf("expected 30s, got %s", cfg.IdleTimeout)
	}
	if cfg.YouTube.APIKey != "yt-key" {
		t.Errorf("expected yt-key, got %s", cfg.YouTube.APIKey)
	}
	if cfg.YouTube.Timeout != 3*time.Second {
		t.Errorf("expected 3s, got %s", cfg.YouTube.Timeout)
	}
	if cfg.RateLimit.RequestsPerMinute != 120 {
		t.Errorf("expected 120, got %d", cfg.RateLimit.RequestsPerMinute)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("expected 2 origins, got %v", cfg.CORS.AllowedOrigins)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("expected sqlite driver, got %s", cfg.Database.Driver)
	}
	if _, err := os.Stat(filepath.Join(dir, "db")); err != nil {
		t.Errorf("expected database directory to be created: %v", err)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := setRequiredEnv(t)

	path := filepath.Join(dir, "config.yaml")
	content := `
server_port: "7070"
read_timeout: 5s
youtube:
  default_language: de
  requests_per_second: 2
stripe:
  success_url: https://app.example/ok
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	// Environment wins over the file.
	t.Setenv("READ_TIMEOUT", "7s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ServerPort != "7070" {
		t.Errorf("expected port from file, got %s", cfg.ServerPort)
	}
	if cfg.ReadTimeout != 7*time.Second {
		t.Errorf("expected env override 7s, got %s", cfg.ReadTimeout)
	}
	if cfg.YouTube.DefaultLanguage != "de" {
		t.Errorf("expected de, got %s", cfg.YouTube.DefaultLanguage)
	}
	if cfg.YouTube.RequestsPerSecond != 2 {
		t.Errorf("expected 2, got %v", cfg.YouTube.RequestsPerSecond)
	}
	if cfg.Stripe.SuccessURL != "https://app.example/ok" {
		t.Errorf("unexpected success url %s", cfg.Stripe.SuccessURL)
	}
	// Untouched defaults survive the overlay.
	if cfg.YouTube.APIBaseURL != "https://www.googleapis.com/youtube/v3" {
		t.Errorf("unexpected api base url %s", cfg.YouTube.APIBaseURL)
	}
}

func TestLoadConfigProductionMiddleware(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Middleware.EnableRateLimit || !cfg.Middleware.EnableTimeout {
		t.Errorf("expected production middleware defaults, got %+v", cfg.Middleware)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"missing webhook secret", func(c *Config) { c.Stripe.WebhookSecret = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "oracle" }},
		{"postgres without dsn", func(c *Config) { c.Database.Driver = DriverPostgres; c.Database.DSN = "" }},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }},
		{"storage without bucket", func(c *Config) { c.Storage.Enabled = true; c.Storage.Bucket = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := defaults()
			cfg.LogDir = filepath.Join(dir, "logs")
			cfg.Database.Path = filepath.Join(dir, "data.db")
			cfg.Auth.JWTSecret = "secret"
			cfg.Stripe.WebhookSecret = "whsec"
			tt.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error")
			}
		})
	}
}
