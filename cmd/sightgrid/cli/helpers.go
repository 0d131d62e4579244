package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/sightgrid/sightgrid/internal/config"
	"github.com/sightgrid/sightgrid/internal/store"
)

// loadConfig reads the YAML config file (if present) and applies
// environment overrides via viper (SIGHTGRID_AUTH_INGEST_SALT and
// friends).
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if path := viper.ConfigFileUsed(); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	// Secrets may come from the environment instead of the file.
	if v := viper.GetString("auth.ingest_salt"); v != "" {
		cfg.Auth.IngestSalt = v
	}
	if v := viper.GetString("auth.jwt_secret"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := viper.GetString("database.driver"); v != "" {
		cfg.Database.Driver = v
	}
	if v := viper.GetString("database.dsn"); v != "" {
		cfg.Database.DSN = v
	}
	return cfg, nil
}

// openStore opens the configured event store, defaulting to an on-disk
// SQLite database under data/.
func openStore(cfg *config.Config) (*store.Store, error) {
	driver := cfg.Database.Driver
	dsn := cfg.Database.DSN
	if driver == "sqlite" && dsn == "" {
		var err error
		dsn, err = store.SQLiteDSN("data")
		if err != nil {
			return nil, fmt.Errorf("resolve sqlite path: %w", err)
		}
	}
	return store.Open(driver, dsn)
}

// newLogger builds the process logger from the logging config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Logging.Format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
