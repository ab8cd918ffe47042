// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/orgcentral/authcore/internal/authz/policy"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema for ABAC policy documents",
		Long: `Prints the JSON Schema that policy replacement documents are validated
against. Point editors and CI validators at this output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := policy.GenerateSchema()
			if err != nil {
				return err
			}
			cmd.Println(string(data))
			return nil
		},
	}
}
