package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sightgrid/sightgrid/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage ingest API keys",
		Long:  "Mint, list, and revoke the signed-ingest credentials issued to camera devices.",
	}

	cmd.AddCommand(newKeyCreateCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyRevokeCmd())

	return cmd
}

func newKeyCreateCmd() *cobra.Command {
	var (
		name  string
		orgID string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a new ingest API key",
		Example: `  sightgrid key create --name "lobby-cam" --org 7f3c...
  sightgrid key create --name "dock-cam" --org 7f3c...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyCreate(name, orgID)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Key name, usually the device it is issued to (required)")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization id the key belongs to (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("org")

	return cmd
}

func runKeyCreate(name, orgID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	raw, record, err := service.GenerateAPIKey(name, orgID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.CreateAPIKey(ctx, record); err != nil {
		return fmt.Errorf("store key: %w", err)
	}

	fmt.Printf("Created key %s (%s)\n\n", record.ID, record.Name)
	fmt.Printf("  %s\n\n", raw)
	fmt.Println("Store this key now. It is shown exactly once and cannot be recovered.")
	return nil
}

func newKeyListCmd() *cobra.Command {
	var orgID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issued keys for an organization",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyList(orgID)
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "Organization id (required)")
	cmd.MarkFlagRequired("org")

	return cmd
}

func runKeyList(orgID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	keys, err := st.ListAPIKeys(ctx, orgID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPREFIX\tREVOKED\tCREATED")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", k.ID, k.Name, k.KeyPrefix, k.Revoked, k.CreatedAt.Format(time.RFC3339))
	}
	return w.Flush()
}

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <key-id>",
		Short: "Revoke an ingest API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeyRevoke(args[0])
		},
	}
	return cmd
}

func runKeyRevoke(id string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.RevokeAPIKey(ctx, id); err != nil {
		return err
	}
	fmt.Printf("Revoked key %s\n", id)
	return nil
}
