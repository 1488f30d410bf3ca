/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/shoplite/apiserver/config"
	"github.com/shoplite/apiserver/internal/auth"
	"github.com/shoplite/apiserver/internal/db"
	"github.com/shoplite/apiserver/internal/services"
	"github.com/shoplite/apiserver/internal/store"
	"github.com/shoplite/apiserver/types"
	"github.com/spf13/cobra"
)

var (
	seedAdminEmail    string
	seedAdminPassword string
	seedAdminName     string
)

// seedCmd bootstraps the admin account. Roles are never mutable through
// the API, so this is the only path that creates an admin.
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the admin account if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		dbConn, err := db.Open(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		repo := store.NewUserRepository(dbConn)
		email := services.NormalizeEmail(seedAdminEmail)

		if _, err := repo.GetByEmail(cmd.Context(), email); err == nil {
			fmt.Printf("admin user %s already exists\n", email)
			return nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check admin user: %w", err)
		}

		hash, err := auth.NewPasswordHasher().Hash(seedAdminPassword)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}

		admin, err := repo.Create(cmd.Context(), types.User{
			Name:         seedAdminName,
			Email:        email,
			Role:         types.RoleAdmin,
			PasswordHash: hash,
		})
		if err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}

		fmt.Printf("created admin user %s (id %d)\n", admin.Email, admin.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedAdminEmail, "email", "admin@example.com", "admin email")
	seedCmd.Flags().StringVar(&seedAdminPassword, "password", "adminpassword", "admin password")
	seedCmd.Flags().StringVar(&seedAdminName, "name", "Admin User", "admin display name")
}
