// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stylus-tools/stylus-trace/internal/logger"
)

var verboseFlag bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stylus-trace",
	Short: "Performance profiling for Arbitrum Stylus transactions",
	Long: `Stylus Trace Studio profiles the execution of Arbitrum Stylus (WASM)
smart-contract transactions.

It fetches a low-level execution trace from a Nitro node, reconstructs a
hierarchical cost profile (gas, Ink units, HostIO boundary crossings),
renders flamegraphs, and compares two profiles against configurable
regression thresholds.

Examples:
  stylus-trace capture --tx 0xabc... --flamegraph            Profile a transaction
  stylus-trace capture --tx 0xabc... --ink --summary         Profile in Ink units
  stylus-trace diff baseline.json target.json -p 5.0         Gate a CI run at 5%
  stylus-trace validate --file profile.json                  Schema-check an artifact

Get started with 'stylus-trace capture --help'.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verboseFlag {
			logger.SetLevel(slog.LevelDebug)
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false,
		"Enable verbose logging")
}

// resolveArtifactPath places bare filenames under artifacts/<category>/ so
// repeated runs keep the working directory tidy; explicit paths are kept
// as given.
func resolveArtifactPath(path, category string) string {
	if path == "" {
		return path
	}
	if dir := filepath.Dir(path); dir == "." {
		return filepath.Join("artifacts", category, path)
	}
	return path
}

// optionalFlagValue returns a pointer to the flag's value only when the user
// actually set it; threshold resolution needs to tell "unset" from "zero".
func optionalFlagValue(cmd *cobra.Command, name string, value float64) *float64 {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	return &value
}
