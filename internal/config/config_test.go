package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sightgrid.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  rate_limit_per_minute: 120
auth:
  ingest_salt: pepper
  jwt_secret: sesame
retention:
  frame_days: 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.RateLimit != 120 {
		t.Errorf("rate limit = %d, want 120", cfg.Server.RateLimit)
	}
	if cfg.Retention.FrameDays != 7 {
		t.Errorf("frame_days = %d, want 7", cfg.Retention.FrameDays)
	}

	// Unset fields keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Database.Driver)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SIGHTGRID_TEST_SALT", "from-env")
	path := writeConfig(t, `
auth:
  ingest_salt: ${SIGHTGRID_TEST_SALT}
  jwt_secret: sesame
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Auth.IngestSalt != "from-env" {
		t.Errorf("ingest_salt = %q, want from-env", cfg.Auth.IngestSalt)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not a map")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Auth.IngestSalt = "pepper"
	cfg.Auth.JWTSecret = "sesame"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing ingest salt", func(c *Config) { c.Auth.IngestSalt = "" }},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mongodb" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.IngestSalt = "pepper"
			cfg.Auth.JWTSecret = "sesame"
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestDurationFallbacks(t *testing.T) {
	cfg := Default()
	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("shutdown timeout = %v, want 30s", d)
	}
	if d := cfg.JWTExpiryDuration(); d != 12*time.Hour {
		t.Errorf("jwt expiry = %v, want 12h", d)
	}
	if d := cfg.GCIntervalDuration(); d != 10*time.Minute {
		t.Errorf("gc interval = %v, want 10m", d)
	}

	cfg.Server.ShutdownTimeout = "not a duration"
	cfg.Auth.JWTExpiry = "-5m"
	cfg.Retention.GCInterval = ""
	if d := cfg.ShutdownTimeoutDuration(); d != 30*time.Second {
		t.Errorf("malformed shutdown timeout = %v, want 30s fallback", d)
	}
	if d := cfg.JWTExpiryDuration(); d != 12*time.Hour {
		t.Errorf("negative jwt expiry = %v, want 12h fallback", d)
	}
	if d := cfg.GCIntervalDuration(); d != 10*time.Minute {
		t.Errorf("empty gc interval = %v, want 10m fallback", d)
	}

	cfg.Auth.JWTExpiry = "45m"
	if d := cfg.JWTExpiryDuration(); d != 45*time.Minute {
		t.Errorf("jwt expiry = %v, want 45m", d)
	}
}

func TestWriteDefault_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sightgrid.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != Default().Server.Port {
		t.Errorf("port = %d, want %d", cfg.Server.Port, Default().Server.Port)
	}

	// The generated file does not carry secrets; validation forces the
	// operator to set them.
	if err := cfg.Validate(); err == nil {
		t.Error("expected default config to fail validation without secrets")
	}
}
