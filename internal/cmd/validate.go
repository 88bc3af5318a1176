// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylus-tools/stylus-trace/internal/profile"
)

var validateFileFlag string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a profile JSON file",
	Long: `Check that a profile artifact parses, carries a supported schema version
and satisfies its structural invariants (totals agree with the call-tree
rollup, hot path ranks are dense).

Example:
  stylus-trace validate --file artifacts/capture/profile.json`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if validateFileFlag == "" {
			return fmt.Errorf("--file is required")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Load(validateFileFlag)
		if err != nil {
			return fmt.Errorf("validating %s: %w", validateFileFlag, err)
		}
		fmt.Printf("%s is a valid profile\n", validateFileFlag)
		fmt.Printf("  schema  : %s\n", p.SchemaVersion)
		fmt.Printf("  tx      : %s\n", p.TransactionHash)
		fmt.Printf("  gas     : %d\n", p.TotalGas)
		fmt.Printf("  hostios : %d\n", p.TotalHostIOCalls)
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFileFlag, "file", "f", "", "Path to profile JSON file")
	rootCmd.AddCommand(validateCmd)
}
