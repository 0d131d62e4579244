package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sightgrid/sightgrid/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sightgrid configuration",
		Long:  "Initialize a default configuration file or validate the current one.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigCheckCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default sightgrid.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "sightgrid.yaml"
			if cfgFile != "" {
				path = cfgFile
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			fmt.Println("Set auth.ingest_salt and auth.jwt_secret before starting the server.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")

	return cmd
}

func newConfigCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("Configuration OK")
			return nil
		},
	}
	return cmd
}
