package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sightgrid",
		Short: "Camera event ingestion and monitoring dashboard",
		Long: `Sightgrid ingests person-detection events from camera edge clients over a
signed HTTP API, stores frames and detections, evaluates alert rules, and
serves a monitoring dashboard with live streaming, daily statistics, and
CSV/Parquet exports.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./sightgrid.yaml)")

	cobra.OnInitialize(initConfig)

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newKeyCmd())
	cmd.AddCommand(newCameraCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newGCCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("sightgrid")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.sightgrid")
	}

	viper.SetEnvPrefix("SIGHTGRID")
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
