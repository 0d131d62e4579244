package cli

import (
	"github.com/spf13/cobra"

	"github.com/sightgrid/sightgrid/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP monitoring server",
		Long: `Start the Model Context Protocol server exposing read-only monitoring
tools (cameras, events, daily stats, alerts) to AI agents. By default the
server speaks stdio for subprocess-launched clients; pass --http to listen
on an address instead.`,
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

			srv := mcp.NewMCPServer(st, logger)
			if httpAddr != "" {
				return srv.ServeHTTP(httpAddr)
			}
			return srv.ServeStdio()
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve MCP over HTTP on this address (e.g. :3001)")

	return cmd
}
