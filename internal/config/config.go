// Package config defines the sightgrid YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level sightgrid configuration file.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Media     MediaConfig     `yaml:"media"`
	Export    ExportConfig    `yaml:"export"`
	Retention RetentionConfig `yaml:"retention"`
	MCP       MCPConfig       `yaml:"mcp"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	MaxBodySize     int64      `yaml:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	RateLimit       int        `yaml:"rate_limit_per_minute"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
}

// DatabaseConfig selects the backing store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// AuthConfig controls ingest signing and admin sessions. IngestSalt is
// required and has no default: derived ingest keys are bound to it, so
// changing it invalidates every issued API key.
type AuthConfig struct {
	IngestSalt string `yaml:"ingest_salt"`
	JWTSecret  string `yaml:"jwt_secret"`
	JWTExpiry  string `yaml:"jwt_expiry"`
}

// MediaConfig controls frame storage.
type MediaConfig struct {
	Dir string `yaml:"dir"`
}

// ExportConfig controls export file output.
type ExportConfig struct {
	Dir string `yaml:"dir"`
}

// RetentionConfig controls the background sweeper.
type RetentionConfig struct {
	FrameDays  int    `yaml:"frame_days"`
	GCInterval string `yaml:"gc_interval"`
}

// MCPConfig controls the Model Context Protocol server.
type MCPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Transport string `yaml:"transport"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses a YAML configuration file. Environment variables
// referenced as ${VAR_NAME} in the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings a server cannot run without.
func (c *Config) Validate() error {
	if c.Auth.IngestSalt == "" {
		return errors.New("auth.ingest_salt is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// ShutdownTimeoutDuration parses the configured shutdown timeout,
// falling back to 30s on a missing or malformed value.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Server.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// JWTExpiryDuration parses the configured admin session lifetime,
// falling back to 12h.
func (c *Config) JWTExpiryDuration() time.Duration {
	d, err := time.ParseDuration(c.Auth.JWTExpiry)
	if err != nil || d <= 0 {
		return 12 * time.Hour
	}
	return d
}

// GCIntervalDuration parses the retention sweep interval, falling back
// to 10m.
func (c *Config) GCIntervalDuration() time.Duration {
	d, err := time.ParseDuration(c.Retention.GCInterval)
	if err != nil || d <= 0 {
		return 10 * time.Minute
	}
	return d
}

// Default returns a Config pre-filled with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     10 << 20,
			ShutdownTimeout: "30s",
			RateLimit:       600,
			CORS: CORSConfig{
				Origins: []string{"*"},
				Methods: []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "",
		},
		Auth: AuthConfig{
			JWTExpiry: "12h",
		},
		Media: MediaConfig{
			Dir: "data/media",
		},
		Export: ExportConfig{
			Dir: "data/exports",
		},
		Retention: RetentionConfig{
			FrameDays:  30,
			GCInterval: "10m",
		},
		MCP: MCPConfig{
			Enabled:   false,
			Transport: "stdio",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefault writes the default configuration to a YAML file.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
