package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sightgrid/sightgrid/internal/alert"
	"github.com/sightgrid/sightgrid/internal/config"
	"github.com/sightgrid/sightgrid/internal/export"
	"github.com/sightgrid/sightgrid/internal/ingest"
	"github.com/sightgrid/sightgrid/internal/media"
	"github.com/sightgrid/sightgrid/internal/metrics"
	"github.com/sightgrid/sightgrid/internal/server"
	"github.com/sightgrid/sightgrid/internal/service"
	"github.com/sightgrid/sightgrid/internal/stream"
)

func newServeCmd() *cobra.Command {
	var (
		port       int
		host       string
		gcInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sightgrid server",
		Long:  "Start the HTTP server that accepts signed camera events and serves the monitoring dashboard API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, gcInterval)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().DurationVar(&gcInterval, "gc-interval", 0, "Background maintenance interval (default from config)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, gcInterval time.Duration) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cfg)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	logger.Info("store opened", "driver", cfg.Database.Driver)

	mediaStore, err := media.NewStore(cfg.Media.Dir)
	if err != nil {
		return err
	}

	m := metrics.New()
	hub := stream.NewHub()
	verifier := ingest.NewVerifier(cfg.Auth.IngestSalt, st, st, logger)
	authSvc := service.NewAuthService(st, cfg.Auth.JWTSecret)
	alerts := alert.NewEvaluator(st, logger)
	exporter, err := export.NewExporter(st, cfg.Export.Dir, logger)
	if err != nil {
		return err
	}

	// Background maintenance: nonce GC, frame retention, deferred
	// frame retries.
	if gcInterval <= 0 {
		gcInterval = cfg.GCIntervalDuration()
	}
	maint := service.NewMaintenanceService(st, mediaStore, cfg.Retention.FrameDays, logger)
	maintCtx, stopMaint := context.WithCancel(context.Background())
	defer stopMaint()
	go maint.Run(maintCtx, gcInterval)
	logger.Info("maintenance loop started", "interval", gcInterval)

	srvCfg := serverConfig(cfg)
	if host != "" {
		srvCfg.Host = host
	}
	if port != 0 {
		srvCfg.Port = port
	}

	srv := server.New(srvCfg, server.Deps{
		Store:    st,
		Verifier: verifier,
		AuthSvc:  authSvc,
		Media:    mediaStore,
		Exporter: exporter,
		Alerts:   alerts,
		Hub:      hub,
		Metrics:  m,
		Logger:   logger,
	})
	return srv.ListenAndServe()
}

func serverConfig(cfg *config.Config) server.Config {
	sc := server.DefaultConfig()
	sc.Host = cfg.Server.Host
	sc.Port = cfg.Server.Port
	sc.ShutdownTimeout = cfg.ShutdownTimeoutDuration()
	sc.MaxBodySize = cfg.Server.MaxBodySize
	sc.RateLimit = cfg.Server.RateLimit
	sc.JWTExpiry = cfg.JWTExpiryDuration()
	if len(cfg.Server.CORS.Origins) > 0 {
		sc.CORSOrigins = cfg.Server.CORS.Origins
	}
	return sc
}
