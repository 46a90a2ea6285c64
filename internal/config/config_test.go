package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	cfg.Auth.JWTSecret = "0123456789abcdef"
	return cfg
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := validConfig(t)

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if cfg.Database.Driver != "sqlite3" || cfg.Database.DSN() != cfg.Database.Path {
		t.Errorf("Unexpected database config %+v", cfg.Database)
	}
	if cfg.QueryTimeout() != 5*time.Second {
		t.Errorf("Expected 5s query timeout, got %s", cfg.QueryTimeout())
	}
	loc, err := cfg.Location()
	if err != nil || loc != time.UTC {
		t.Errorf("Expected UTC location, got %v, %v", loc, err)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"server":{"port":"9090"},"eligibility":{"timezone":"Asia/Kuala_Lumpur"},"features":{"bin_scan_guard":false}}`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("FEATURE_MEDIA_UPLOAD", "false")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Expected env to override file, got port %s", cfg.Server.Port)
	}
	if cfg.Eligibility.Timezone != "Asia/Kuala_Lumpur" {
		t.Errorf("Expected timezone from file, got %s", cfg.Eligibility.Timezone)
	}
	if enabled, ok := cfg.Features["bin_scan_guard"]; !ok || enabled {
		t.Errorf("Expected bin_scan_guard disabled from file")
	}
	if enabled, ok := cfg.Features["media_upload"]; !ok || enabled {
		t.Errorf("Expected media_upload disabled from env")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"pgx without url", func(c *Config) { c.Database.Driver = "pgx"; c.Database.URL = "" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Backend = "s3"; c.Storage.S3Bucket = "" }},
		{"bad timezone", func(c *Config) { c.Eligibility.Timezone = "Mars/Olympus" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"zero rate", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.Rate = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
