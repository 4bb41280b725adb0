// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quillboard Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/quillboard/quillboard/internal/xdg"
)

// NewRootCmd creates the root command for the Quillboard CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quillboard",
		Short: "Quillboard - a multi-user forum",
		Long: `Quillboard is a multi-user forum server with credential-based
authentication, server-side sessions, CSRF protection, and baseline
browser-security headers.`,
	}

	cmd.PersistentFlags().String("config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())

	return cmd
}

// configPath reads the persistent --config flag, falling back to the
// XDG config file when one exists.
func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = xdg.DefaultConfigFile()
	}
	return path
}
