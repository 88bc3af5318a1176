// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stylus-tools/stylus-trace/internal/profile"
)

var schemaShowFlag bool

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Display profile schema information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Profile schema version: %s\n", profile.SchemaVersion)
		if !schemaShowFlag {
			fmt.Println("Use --show for field details.")
			return
		}
		fmt.Print(schemaDetails)
	},
}

const schemaDetails = `
Top-level fields:
  schema_version      semver of the profile document format
  transaction_hash    0x-prefixed hash of the profiled transaction
  tracer_name         tracer that produced the raw trace (stylusTracer)
  total_gas           gas consumed by the whole transaction
  total_ink           Ink consumed; null when Ink accounting was off
  total_hostio_calls  host boundary crossings in the whole transaction
  hot_paths[]         ranked root-to-node chains (node_path, metric_value, rank)
  root                call tree

Tree node fields:
  label               function or call-site name
  self_gas            cost attributed directly to the node
  cumulative_gas      self plus all descendants
  self_ink            like self_gas, in Ink units; omitted when not measured
  cumulative_ink      like cumulative_gas, in Ink units; omitted when not measured
  hostio_count        host boundary crossings in the subtree
  call_count          consecutive recursions collapsed into this node
  children[]          owned children in first-seen order
`

func init() {
	schemaCmd.Flags().BoolVar(&schemaShowFlag, "show", false, "Show full schema details")
	rootCmd.AddCommand(schemaCmd)
}
