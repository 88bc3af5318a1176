// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stylus-tools/stylus-trace/internal/cache"
	"github.com/stylus-tools/stylus-trace/internal/config"
	"github.com/stylus-tools/stylus-trace/internal/diff"
	"github.com/stylus-tools/stylus-trace/internal/errors"
	"github.com/stylus-tools/stylus-trace/internal/logger"
	"github.com/stylus-tools/stylus-trace/internal/profile"
	"github.com/stylus-tools/stylus-trace/internal/report"
	"github.com/stylus-tools/stylus-trace/internal/rpc"
	"github.com/stylus-tools/stylus-trace/internal/telemetry"
	"github.com/stylus-tools/stylus-trace/internal/threshold"
	"github.com/stylus-tools/stylus-trace/internal/trace"
	"github.com/stylus-tools/stylus-trace/internal/visualizer"
)

var (
	captureRPCFlag        string
	captureTxFlag         string
	captureOutputFlag     string
	captureFlamegraphFlag string
	captureTopPathsFlag   int
	captureTitleFlag      string
	captureWidthFlag      int
	captureSummaryFlag    bool
	captureInkFlag        bool
	captureTracerFlag     string
	captureMetricFlag     string
	captureBaselineFlag   string
	capturePercentFlag    float64
	captureGasThFlag      float64
	captureHostIOThFlag   float64
	captureNoCacheFlag    bool
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture and profile a transaction",
	Long: `Fetch the execution trace of a Stylus transaction from a Nitro node,
reconstruct its cost profile and write the profile JSON artifact.

Optionally renders a flamegraph SVG, prints a text summary, and diffs the
fresh capture against a baseline profile for inline regression gating.

Examples:
  stylus-trace capture --tx 0xabc...
  stylus-trace capture --tx 0xabc... --flamegraph --ink --summary
  stylus-trace capture --tx 0xabc... --baseline old.json --gas-threshold 5.0`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if captureTxFlag == "" {
			return errors.WrapValidationError("--tx is required")
		}
		if err := rpc.ValidateTransactionHash(captureTxFlag); err != nil {
			return err
		}
		if captureRPCFlag != "" {
			if err := rpc.ValidateURL(captureRPCFlag); err != nil {
				return err
			}
		}
		_, err := profile.ParseMetric(captureMetricFlag)
		return err
	},
	RunE: runCapture,
}

func init() {
	captureCmd.Flags().StringVarP(&captureRPCFlag, "rpc", "r", "",
		"RPC endpoint URL (defaults to the configured node)")
	captureCmd.Flags().StringVarP(&captureTxFlag, "tx", "t", "",
		"Transaction hash to profile")
	captureCmd.Flags().StringVarP(&captureOutputFlag, "output", "o", "profile.json",
		"Output path for the JSON profile (placed in artifacts/capture/ by default)")
	captureCmd.Flags().StringVarP(&captureFlamegraphFlag, "flamegraph", "f", "",
		"Output path for the SVG flamegraph (placed in artifacts/capture/ by default)")
	captureCmd.Flags().Lookup("flamegraph").NoOptDefVal = "flamegraph.svg"
	captureCmd.Flags().IntVar(&captureTopPathsFlag, "top-paths", profile.DefaultTopPaths,
		"Number of top hot paths to include")
	captureCmd.Flags().StringVar(&captureTitleFlag, "title", "",
		"Flamegraph title")
	captureCmd.Flags().IntVar(&captureWidthFlag, "width", visualizer.DefaultWidth,
		"Flamegraph width in pixels")
	captureCmd.Flags().BoolVar(&captureSummaryFlag, "summary", false,
		"Print text summary to stdout")
	captureCmd.Flags().BoolVar(&captureInkFlag, "ink", false,
		"Use Stylus Ink units (scaled by 10,000)")
	captureCmd.Flags().StringVar(&captureTracerFlag, "tracer", "",
		"Tracer name (defaults to \"stylusTracer\")")
	captureCmd.Flags().StringVar(&captureMetricFlag, "metric", "gas",
		"Hot path ranking metric (gas, ink, hostio)")
	captureCmd.Flags().StringVar(&captureBaselineFlag, "baseline", "",
		"Path to baseline profile for on-the-fly diffing")
	captureCmd.Flags().Float64VarP(&capturePercentFlag, "threshold-percent", "p", 0,
		"Blanket increase threshold percentage applied to gas, HostIOs and hot paths")
	captureCmd.Flags().Float64Var(&captureGasThFlag, "gas-threshold", 0,
		"Gas increase threshold percentage (strict focus: only gas is checked)")
	captureCmd.Flags().Float64Var(&captureHostIOThFlag, "hostio-threshold", 0,
		"HostIO calls increase threshold percentage (strict focus: only HostIOs are checked)")
	captureCmd.Flags().BoolVar(&captureNoCacheFlag, "no-cache", false,
		"Bypass the local raw-trace cache")

	rootCmd.AddCommand(captureCmd)
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	rpcURL := captureRPCFlag
	if rpcURL == "" {
		rpcURL = cfg.RPCURL
	}

	shutdown, err := telemetry.Init(cmd.Context(), telemetry.Config{
		Enabled:     cfg.TelemetryEnabled,
		ExporterURL: cfg.TelemetryEndpoint,
		Version:     Version,
	})
	if err != nil {
		logger.Logger.Warn("Telemetry init failed, continuing without it", "error", err)
		shutdown = func() {}
	}
	defer shutdown()

	ctx, span := telemetry.GetTracer().Start(cmd.Context(), "capture")
	span.SetAttributes(attribute.String("transaction.hash", captureTxFlag))
	defer span.End()

	raw, err := fetchTraceDocument(ctx, cfg, rpcURL)
	if err != nil {
		return err
	}

	events, err := trace.Normalize(raw, captureTracerFlag, trace.Options{Ink: captureInkFlag})
	if err != nil {
		return fmt.Errorf("normalizing trace for tx %s: %w", captureTxFlag, err)
	}

	metric, err := profile.ParseMetric(captureMetricFlag)
	if err != nil {
		return err
	}
	p, err := profile.Build(events, profile.BuildOptions{
		TransactionHash: captureTxFlag,
		TracerName:      tracerOrDefault(),
		Ink:             captureInkFlag,
		TopPaths:        captureTopPathsFlag,
		HotPathMetric:   metric,
	})
	if err != nil {
		return fmt.Errorf("building profile for tx %s: %w", captureTxFlag, err)
	}

	outputPath := resolveArtifactPath(captureOutputFlag, "capture")
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	if err := profile.Save(p, outputPath); err != nil {
		return err
	}
	fmt.Printf("Profile written to %s\n", outputPath)

	if cmd.Flags().Changed("flamegraph") {
		svgPath := resolveArtifactPath(captureFlamegraphFlag, "capture")
		svg, err := visualizer.Render(p, visualizer.FlamegraphConfig{
			Ink:   captureInkFlag,
			Title: captureTitleFlag,
			Width: captureWidthFlag,
		})
		if err != nil {
			return err
		}
		if err := os.WriteFile(svgPath, svg, 0o644); err != nil {
			return fmt.Errorf("writing flamegraph %s: %w", svgPath, err)
		}
		fmt.Printf("Flamegraph written to %s\n", svgPath)
	}

	if captureSummaryFlag {
		fmt.Println()
		report.WriteProfileSummary(os.Stdout, p)
	}

	if captureBaselineFlag != "" {
		return captureInlineDiff(cmd, p)
	}
	return nil
}

// fetchTraceDocument serves the raw trace from the local cache when
// possible, hitting the node and refreshing the cache otherwise.
func fetchTraceDocument(ctx context.Context, cfg *config.Config, rpcURL string) (json.RawMessage, error) {
	tracer := tracerOrDefault()

	var store *cache.Store
	if !captureNoCacheFlag {
		var err error
		store, err = cache.Open(cfg.CachePath)
		if err != nil {
			logger.Logger.Warn("Trace cache unavailable, fetching directly", "error", err)
		} else {
			defer store.Close()
			if cached, err := store.Get(rpcURL, captureTxFlag, tracer); err == nil && cached != nil {
				logger.Logger.Debug("Trace served from cache", "tx", captureTxFlag)
				return cached, nil
			}
		}
	}

	client := rpc.NewClient(rpcURL, cfg.RPCToken)
	raw, err := client.FetchTrace(ctx, captureTxFlag, tracer)
	if err != nil {
		return nil, err
	}

	if store != nil {
		if err := store.Put(rpcURL, captureTxFlag, tracer, raw); err != nil {
			logger.Logger.Warn("Failed to cache trace", "tx", captureTxFlag, "error", err)
		}
	}
	return raw, nil
}

// captureInlineDiff gates a fresh capture against a stored baseline.
func captureInlineDiff(cmd *cobra.Command, target *profile.Profile) error {
	baselinePath := resolveArtifactPath(captureBaselineFlag, "capture")
	baseline, err := profile.Load(baselinePath)
	if err != nil {
		return err
	}

	policy, err := threshold.Resolve(nil, threshold.Flags{
		Percent: optionalFlagValue(cmd, "threshold-percent", capturePercentFlag),
		Gas:     optionalFlagValue(cmd, "gas-threshold", captureGasThFlag),
		HostIO:  optionalFlagValue(cmd, "hostio-threshold", captureHostIOThFlag),
	})
	if err != nil {
		return err
	}

	result := diff.Diff(baseline, target, policy)
	fmt.Println()
	report.WriteDiffSummary(os.Stdout, result)

	if result.HasRegressions() {
		return fmt.Errorf("performance regression detected against baseline %s", baselinePath)
	}
	return nil
}

func tracerOrDefault() string {
	if captureTracerFlag != "" {
		return captureTracerFlag
	}
	return trace.DefaultTracer
}
