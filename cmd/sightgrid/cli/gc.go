package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightgrid/sightgrid/internal/media"
	"github.com/sightgrid/sightgrid/internal/service"
)

func newGCCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Run one maintenance pass",
		Long: `Run a single maintenance pass: purge expired ingest nonces, retry
deferred frame writes, and delete frames past the retention window. The
serve command runs the same pass on an interval; gc exists for cron-style
deployments and operational one-offs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg)

			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			mediaStore, err := media.NewStore(cfg.Media.Dir)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			service.NewMaintenanceService(st, mediaStore, cfg.Retention.FrameDays, logger).RunOnce(ctx)
			fmt.Println("Maintenance pass complete")
			return nil
		},
	}
	return cmd
}
