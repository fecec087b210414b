package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowsync/flowsync/internal/auth"
	"github.com/flowsync/flowsync/internal/config"
	"github.com/flowsync/flowsync/internal/storage"
	"github.com/flowsync/flowsync/internal/storage/sqlite"
	"github.com/flowsync/flowsync/internal/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and the first admin account",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		password, _ := cmd.Flags().GetString("password")
		name, _ := cmd.Flags().GetString("name")
		return runInit(cmd.Context(), email, password, name)
	},
}

func init() {
	initCmd.Flags().String("email", "", "admin email (required)")
	initCmd.Flags().String("password", "", "admin password (required)")
	initCmd.Flags().String("name", "", "admin display name")
	_ = initCmd.MarkFlagRequired("email")
	_ = initCmd.MarkFlagRequired("password")
	rootCmd.AddCommand(initCmd)
}

func runInit(ctx context.Context, email, password, name string) error {
	cfg, err := config.Load(viper.New(), cfgFile)
	if err != nil {
		return err
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	if _, err := store.GetUserByEmail(ctx, email); err == nil {
		return fmt.Errorf("user %s already exists", email)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := &types.User{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  name,
		PasswordHash: hash,
		Role:         types.RoleAdmin,
		Active:       true,
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	fmt.Printf("initialized %s with admin %s\n", cfg.DBPath, email)
	return nil
}
