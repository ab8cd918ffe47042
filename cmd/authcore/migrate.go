// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Apply all pending schema migrations to the PostgreSQL database.`,
		RunE:  runMigrateUp,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations",
		Long:  `Roll back every migration, dropping all authcore tables and data.`,
		RunE:  runMigrateDown,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE:  runMigrateStatus,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "step <n>",
		Short: "Apply n migrations (negative n rolls back)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMigrateStep,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force <version>",
		Short: "Set the schema version without running migrations",
		Long: `Set the recorded schema version without running any migration.
Use only to recover from a dirty state after repairing the database by hand.`,
		Args: cobra.ExactArgs(1),
		RunE: runMigrateForce,
	})

	return cmd
}

func openMigrator(cmd *cobra.Command) (*store.Migrator, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, oops.Code(authz.CodeConfigInvalid).Errorf("database_url is required")
	}
	return store.NewMigrator(cfg.DatabaseURL)
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to migration outcome

	cmd.Println("Running migrations...")
	if err := migrator.Up(); err != nil {
		return err
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to migration outcome

	cmd.Println("Rolling back all migrations...")
	if err := migrator.Down(); err != nil {
		return err
	}
	cmd.Println("Rollback completed")
	return nil
}

func runMigrateStep(cmd *cobra.Command, args []string) error {
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return oops.Code(authz.CodeValidationFailed).Errorf("step count must be an integer, got %q", args[0])
	}

	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to migration outcome

	if err := migrator.Steps(n); err != nil {
		return err
	}
	cmd.Printf("Applied %d migration step(s)\n", n)
	return nil
}

func runMigrateForce(cmd *cobra.Command, args []string) error {
	version, err := strconv.Atoi(args[0])
	if err != nil || version < 0 {
		return oops.Code(authz.CodeValidationFailed).Errorf("version must be a non-negative integer, got %q", args[0])
	}

	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to migration outcome

	if err := migrator.Force(version); err != nil {
		return err
	}
	cmd.Printf("Schema version forced to %d\n", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, _ []string) error {
	migrator, err := openMigrator(cmd)
	if err != nil {
		return err
	}
	defer migrator.Close() //nolint:errcheck // close error is secondary to migration outcome

	version, dirty, err := migrator.Version()
	if err != nil {
		return err
	}
	name, err := store.MigrationName(version)
	if err != nil {
		return err
	}

	if version == 0 {
		cmd.Println("No migrations applied")
	} else {
		cmd.Printf("Current version: %d (%s), dirty: %v\n", version, name, dirty)
		applied, appliedErr := migrator.AppliedMigrations()
		if appliedErr != nil {
			return appliedErr
		}
		for _, v := range applied {
			appliedName, nameErr := store.MigrationName(v)
			if nameErr != nil {
				return nameErr
			}
			cmd.Printf("Applied: %d (%s)\n", v, appliedName)
		}
	}

	pending, err := migrator.PendingMigrations()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		cmd.Println("Database is up to date")
		return nil
	}
	for _, v := range pending {
		pendingName, nameErr := store.MigrationName(v)
		if nameErr != nil {
			return nameErr
		}
		cmd.Printf("Pending: %d (%s)\n", v, pendingName)
	}
	return nil
}
