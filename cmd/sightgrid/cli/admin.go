package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sightgrid/sightgrid/internal/model"
	"github.com/sightgrid/sightgrid/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage dashboard operators",
	}

	cmd.AddCommand(newAdminCreateCmd())

	return cmd
}

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
		name     string
		orgID    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard operator account",
		Example: `  sightgrid admin create --email ops@example.com --org 7f3c...
  sightgrid admin create --email ops@example.com  # new organization, prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(email, password, name, orgID)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Operator email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization id (a new one is generated if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminCreate(email, password, name, orgID string) error {
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}

	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if orgID == "" {
		orgID = uuid.NewString()
	}

	admin := &model.Admin{
		Email:        email,
		OrgID:        orgID,
		PasswordHash: service.HashPassword(password),
		Name:         name,
		IsActive:     true,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := st.CreateAdmin(ctx, admin); err != nil {
		return err
	}

	fmt.Printf("Created operator %s (org %s)\n", admin.Email, admin.OrgID)
	return nil
}
