package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightgrid/sightgrid/internal/export"
	"github.com/sightgrid/sightgrid/internal/model"
)

func newExportCmd() *cobra.Command {
	var (
		orgID     string
		cameraID  string
		eventType string
		start     string
		end       string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export events to CSV and Parquet",
		Example: `  sightgrid export --org 7f3c... --start 2026-08-01T00:00:00Z
  sightgrid export --org 7f3c... --camera 91ab... --event-type person_detected`,
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

			filter := model.EventFilter{CameraID: cameraID, EventType: eventType}
			if eventType != "" && !model.ValidEventType(eventType) {
				return fmt.Errorf("invalid event type %q", eventType)
			}
			if start != "" {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("--start must be RFC 3339")
				}
				t = t.UTC()
				filter.Start = &t
			}
			if end != "" {
				t, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("--end must be RFC 3339")
				}
				t = t.UTC()
				filter.End = &t
			}

			exporter, err := export.NewExporter(st, cfg.Export.Dir, logger)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()
			job, err := exporter.Run(ctx, orgID, "cli", filter)
			if err != nil {
				return err
			}
			fmt.Printf("Export %s complete\n  csv:     %s\n  parquet: %s\n", job.ID, job.CSVPath, job.ParquetPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id (required)")
	cmd.Flags().StringVar(&cameraID, "camera", "", "Restrict to one camera")
	cmd.Flags().StringVar(&eventType, "event-type", "", "Restrict to one event type")
	cmd.Flags().StringVar(&start, "start", "", "RFC 3339 lower bound on occurred_at")
	cmd.Flags().StringVar(&end, "end", "", "RFC 3339 upper bound on occurred_at")
	cmd.MarkFlagRequired("org")

	return cmd
}
