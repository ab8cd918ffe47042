// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/policy"
	policystore "github.com/orgcentral/authcore/internal/authz/policy/store"
	"github.com/orgcentral/authcore/internal/config"
	"github.com/orgcentral/authcore/internal/store"
)

// Default timeout for seed command.
const defaultSeedTimeout = 30 * time.Second

// seedConfig holds configuration for the seed command.
type seedConfig struct {
	orgID   string
	timeout time.Duration
}

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	cfg := &seedConfig{}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed a tenant's default ABAC policies",
		Long: `Installs the default ABAC policy set for a tenant that has never had
an admin policy write. Idempotent: a tenant whose policy set has already
been written is left untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, args, cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.orgID, "org", "", "tenant org ID to seed (required)")
	cmd.Flags().DurationVar(&cfg.timeout, "timeout", defaultSeedTimeout, "timeout for database operations (e.g., 30s, 1m)")
	_ = cmd.MarkFlagRequired("org")

	return cmd
}

func runSeed(cmd *cobra.Command, _ []string, seedCfg *seedConfig) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code(authz.CodeConfigInvalid).Errorf("database_url is required")
	}

	// Use cmd.Context() to respect SIGINT/SIGTERM signals
	ctx, cancel := context.WithTimeout(cmd.Context(), seedCfg.timeout)
	defer cancel()

	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	cmd.Println("Connecting to database...")
	pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := policy.Bootstrap(ctx, policystore.NewPostgresStore(pool), registry, seedCfg.orgID, slog.Default()); err != nil {
		return err
	}

	cmd.Printf("Tenant %s seeded\n", seedCfg.orgID)
	return nil
}

// loadRegistry returns the capability registry, preferring a configured
// statements file over the built-in defaults.
func loadRegistry(cfg config.Config) (*authz.CapabilityRegistry, error) {
	if cfg.RegistryPath != "" {
		return authz.LoadCapabilityRegistry(cfg.RegistryPath)
	}
	return authz.NewCapabilityRegistry(authz.DefaultRegistryStatements())
}
