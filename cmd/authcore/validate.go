// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/orgcentral/authcore/internal/authz/policy"
)

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <policy-file.json>",
		Short: "Validate an ABAC policy document without touching the database",
		Long: `Validates a policy replacement document: JSON Schema structure, selector
grammar, capability-registry membership, and condition operators.
Exits with code 0 on success, non-zero on failure.

Useful in CI pipelines to catch policy errors before they reach an admin:
  authcore validate policies.json`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	registry, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return oops.With("path", args[0]).Wrapf(err, "read policy document")
	}

	policies, _, err := policy.ValidateDocument(data)
	if err != nil {
		return err
	}
	if err := policy.ValidatePolicies(policies, registry); err != nil {
		return err
	}

	cmd.Printf("%d policies valid\n", len(policies))
	return nil
}
