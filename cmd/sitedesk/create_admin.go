// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sitedesk/sitedesk/internal/auth"
	authpg "github.com/sitedesk/sitedesk/internal/auth/postgres"
	"github.com/sitedesk/sitedesk/internal/store"
)

// adminPasswordEnv holds the initial admin password so it never appears in
// shell history or process listings.
const adminPasswordEnv = "SITEDESK_ADMIN_PASSWORD"

// NewCreateAdminCmd creates the create-admin subcommand.
func NewCreateAdminCmd() *cobra.Command {
	var (
		databaseURL string
		email       string
		name        string
	)

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Provision an admin account",
		Long: `Create a principal with the admin role. The password is read from
the ` + adminPasswordEnv + ` environment variable.

Registration over the API always yields the base user role; this command is
the bootstrap path for the first administrator.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCreateAdmin(cmd, databaseURL, email, name, os.Getenv(adminPasswordEnv))
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "PostgreSQL URL (default: DATABASE_URL env)")
	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runCreateAdmin(cmd *cobra.Command, flagURL, email, name, password string) error {
	if password == "" {
		return oops.Code("CONFIG_INVALID").
			Errorf("%s environment variable is required", adminPasswordEnv)
	}

	databaseURL, err := databaseURLFromEnv(flagURL)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	pool, err := store.Connect(ctx, databaseURL, nil)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "connect to database").
			Wrap(err)
	}
	defer pool.Close()

	hasher := auth.NewScryptHasher()
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	principal, err := auth.NewPrincipal(email, name, hash)
	if err != nil {
		return err
	}
	principal.Role = auth.RoleAdmin

	principals := authpg.NewPrincipalRepository(pool)
	if err := principals.Create(ctx, principal); err != nil {
		return err
	}

	cmd.Printf("Admin created: %s (%s)\n", principal.ID.String(), principal.Email)
	return nil
}
