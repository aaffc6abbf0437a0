package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/vivekcuts/vivekcuts-backend/internal/database"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
	"github.com/vivekcuts/vivekcuts-backend/internal/services"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage dashboard accounts",
	}
	cmd.AddCommand(adminCreateCmd())
	return cmd
}

func adminCreateCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dashboard account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := database.InitDB(cfg.Database, logger)
			if err != nil {
				return err
			}

			auth := services.NewAuthService(repositories.NewAdminRepository(db), cfg.JWTSecret, logger)
			admin, err := auth.CreateAdmin(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", admin.Email, admin.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (min 8 characters)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
