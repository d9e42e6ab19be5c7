// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the SiteDesk CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitedesk",
		Short: "SiteDesk - construction project management backend",
		Long: `SiteDesk is the backend for the SiteDesk construction project
management platform. This binary serves the authentication and session
authorization core: account registration, login, password resets, and
role-based access control for the HTTP API.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (YAML)")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCreateAdminCmd())

	return cmd
}
