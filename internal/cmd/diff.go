// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/stylus-tools/stylus-trace/internal/diff"
	"github.com/stylus-tools/stylus-trace/internal/profile"
	"github.com/stylus-tools/stylus-trace/internal/report"
	"github.com/stylus-tools/stylus-trace/internal/threshold"
	"github.com/stylus-tools/stylus-trace/internal/visualizer"
)

var (
	diffThresholdFileFlag string
	diffPercentFlag       float64
	diffGasThFlag         float64
	diffHostIOThFlag      float64
	diffSummaryFlag       bool
	diffOutputFlag        string
	diffFlamegraphFlag    string
	diffInkFlag           bool
	diffWidthFlag         int
)

var diffCmd = &cobra.Command{
	Use:   "diff <baseline> <target>",
	Short: "Compare two transaction profiles and detect regressions",
	Long: `Compare two persisted profile artifacts, classify per-metric deltas
against configured thresholds and report a pass/fail verdict.

The exit code reflects the verdict: a detected regression exits non-zero,
so the command can gate CI pipelines directly.

Thresholds layer in a fixed order: the TOML file is the base, the blanket
--threshold-percent flag fills metrics the file left unset, and a
metric-specific flag such as --gas-threshold switches to strict focus mode
where only the flagged metrics are checked at all.

Examples:
  stylus-trace diff baseline.json target.json -p 5.0
  stylus-trace diff baseline.json target.json --threshold thresholds.toml
  stylus-trace diff baseline.json target.json --gas-threshold 2.5 --flamegraph`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func init() {
	diffCmd.Flags().StringVarP(&diffThresholdFileFlag, "threshold", "t", "",
		"Threshold configuration file (TOML)")
	diffCmd.Flags().Float64VarP(&diffPercentFlag, "threshold-percent", "p", 0,
		"Blanket increase threshold percentage applied to gas, HostIOs and hot paths")
	diffCmd.Flags().Float64Var(&diffGasThFlag, "gas-threshold", 0,
		"Gas increase threshold percentage (strict focus: only gas is checked)")
	diffCmd.Flags().Float64Var(&diffHostIOThFlag, "hostio-threshold", 0,
		"HostIO calls increase threshold percentage (strict focus: only HostIOs are checked)")
	diffCmd.Flags().BoolVarP(&diffSummaryFlag, "summary", "s", true,
		"Print a human-readable summary to the terminal")
	diffCmd.Flags().StringVarP(&diffOutputFlag, "output", "o", "diff_report.json",
		"Path to write the diff report JSON")
	diffCmd.Flags().StringVarP(&diffFlamegraphFlag, "flamegraph", "f", "",
		"Path to write the visual diff flamegraph SVG")
	diffCmd.Flags().Lookup("flamegraph").NoOptDefVal = "diff.svg"
	diffCmd.Flags().BoolVar(&diffInkFlag, "ink", false,
		"Render the diff flamegraph in Ink units")
	diffCmd.Flags().IntVar(&diffWidthFlag, "width", visualizer.DefaultWidth,
		"Diff flamegraph width in pixels")

	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	baselinePath := resolveArtifactPath(args[0], "capture")
	targetPath := resolveArtifactPath(args[1], "capture")

	baseline, err := profile.Load(baselinePath)
	if err != nil {
		return err
	}
	target, err := profile.Load(targetPath)
	if err != nil {
		return err
	}

	fileCfg, err := threshold.LoadFile(diffThresholdFileFlag)
	if err != nil {
		return err
	}
	policy, err := threshold.Resolve(fileCfg, threshold.Flags{
		Percent: optionalFlagValue(cmd, "threshold-percent", diffPercentFlag),
		Gas:     optionalFlagValue(cmd, "gas-threshold", diffGasThFlag),
		HostIO:  optionalFlagValue(cmd, "hostio-threshold", diffHostIOThFlag),
	})
	if err != nil {
		return err
	}

	result := diff.Diff(baseline, target, policy)

	if diffOutputFlag != "" {
		reportPath := resolveArtifactPath(diffOutputFlag, "diff")
		if err := os.MkdirAll(filepath.Dir(reportPath), 0o755); err != nil {
			return fmt.Errorf("creating artifact directory: %w", err)
		}
		data, err := report.NewDiffReport(baselinePath, targetPath, result).Marshal()
		if err != nil {
			return err
		}
		if err := os.WriteFile(reportPath, data, 0o644); err != nil {
			return fmt.Errorf("writing diff report %s: %w", reportPath, err)
		}
		fmt.Printf("Diff report written to %s\n", reportPath)
	}

	if cmd.Flags().Changed("flamegraph") {
		svgPath := resolveArtifactPath(diffFlamegraphFlag, "diff")
		if err := os.MkdirAll(filepath.Dir(svgPath), 0o755); err != nil {
			return fmt.Errorf("creating artifact directory: %w", err)
		}
		svg, err := visualizer.RenderDiff(baseline, target, visualizer.FlamegraphConfig{
			Ink:   diffInkFlag,
			Width: diffWidthFlag,
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, svg, 0o644); err != nil {
			return fmt.Errorf("writing diff flamegraph %s: %w", svgPath, err)
		}
		fmt.Printf("Diff flamegraph written to %s\n", svgPath)
	}

	if diffSummaryFlag {
		fmt.Println()
		report.WriteDiffSummary(os.Stdout, result)
	}

	if result.HasRegressions() {
		return fmt.Errorf("performance regression detected (%d metric(s) over threshold)", len(result.Regressions))
	}
	return nil
}
