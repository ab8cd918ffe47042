// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/orgcentral/authcore/internal/config"
	"github.com/orgcentral/authcore/internal/logging"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authcore CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authcore",
		Short: "OrgCentral authorization core",
		Long: `authcore manages the OrgCentral multi-tenant authorization core:
database schema, tenant ABAC policy seeding, policy validation, and the
background maintenance worker.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	cmd.PersistentFlags().String("database_url", "", "PostgreSQL connection string")
	cmd.PersistentFlags().String("log_format", "", "log format: json or text")
	cmd.PersistentFlags().String("metrics_addr", "", "observability listen address")

	// Add subcommands
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewWorkerCmd())

	return cmd
}

// loadConfig resolves the effective configuration for a subcommand and
// installs the default logger.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return config.Config{}, err
	}
	logging.SetDefault("authcore", version, cfg.LogFormat)
	return cfg, nil
}
