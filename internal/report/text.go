// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/stylus-tools/stylus-trace/internal/diff"
	"github.com/stylus-tools/stylus-trace/internal/profile"
)

var (
	headerStyle = color.New(color.Bold, color.FgCyan)
	passStyle   = color.New(color.Bold, color.FgGreen)
	failStyle   = color.New(color.Bold, color.FgRed)
	warnStyle   = color.New(color.FgYellow)
	dimStyle    = color.New(color.Faint)
)

// WriteProfileSummary prints a human-readable capture summary.
func WriteProfileSummary(w io.Writer, p *profile.Profile) {
	headerStyle.Fprintf(w, "Profile: %s\n", p.TransactionHash)
	fmt.Fprintf(w, "  Tracer        : %s\n", p.TracerName)
	fmt.Fprintf(w, "  Total gas     : %s\n", gasString(p.TotalGas))
	fmt.Fprintf(w, "  Total ink     : %s\n", inkString(p.TotalInk))
	fmt.Fprintf(w, "  HostIO calls  : %s\n", gasString(p.TotalHostIOCalls))
	fmt.Fprintln(w)

	if len(p.HotPaths) == 0 {
		dimStyle.Fprintln(w, "  (no hot paths)")
		return
	}
	headerStyle.Fprintln(w, "Hot paths:")
	for _, hp := range p.HotPaths {
		fmt.Fprintf(w, "  %3d. %-12s %s\n", hp.Rank, gasString(hp.MetricValue), pathString(hp.NodePath))
	}
}

// WriteDiffSummary prints a human-readable regression report. Non-fatal
// anomalies such as divergent baselines are part of the summary, never
// raised separately.
func WriteDiffSummary(w io.Writer, r *diff.Result) {
	headerStyle.Fprintln(w, "Profile comparison")
	fmt.Fprintf(w, "  Baseline : %s\n", r.BaselineTransaction)
	fmt.Fprintf(w, "  Target   : %s\n", r.TargetTransaction)
	fmt.Fprintln(w)

	for _, metric := range []string{diff.MetricGas, diff.MetricInk, diff.MetricHostIO} {
		d, ok := r.MetricDeltas[metric]
		if !ok {
			continue
		}
		if !d.Measured {
			dimStyle.Fprintf(w, "  %-12s not measured on both sides\n", metric)
			continue
		}
		fmt.Fprintf(w, "  %-12s %s -> %s  (%s)\n",
			metric, gasString(d.BaselineValue), gasString(d.TargetValue), percentString(d))
	}

	if len(r.HotPathDeltas) > 0 {
		fmt.Fprintln(w)
		headerStyle.Fprintln(w, "Hot path changes:")
		for _, d := range r.HotPathDeltas {
			switch d.Status {
			case diff.HotPathNew:
				warnStyle.Fprintf(w, "  new     #%d %s\n", d.TargetRank, pathString(d.NodePath))
			case diff.HotPathDropped:
				dimStyle.Fprintf(w, "  dropped #%d %s\n", d.BaselineRank, pathString(d.NodePath))
			case diff.HotPathShifted:
				fmt.Fprintf(w, "  shifted #%d -> #%d (%+.2f%%) %s\n",
					d.BaselineRank, d.TargetRank, d.PercentChange, pathString(d.NodePath))
			}
		}
	}

	fmt.Fprintln(w)
	if len(r.Regressions) > 0 {
		failStyle.Fprintln(w, "Regressions:")
		for _, reg := range r.Regressions {
			if reg.Divergent {
				failStyle.Fprintf(w, "  %-12s infinite increase (threshold %.2f%%)", reg.Metric, reg.Threshold)
			} else {
				failStyle.Fprintf(w, "  %-12s +%.2f%% exceeds threshold %.2f%%",
					reg.Metric, reg.ObservedPercentChange, reg.Threshold)
			}
			if reg.Detail != "" {
				fmt.Fprintf(w, "  [%s]", reg.Detail)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
		failStyle.Fprintln(w, "Verdict: FAIL")
		return
	}
	passStyle.Fprintln(w, "Verdict: PASS")
}

func percentString(d diff.MetricDelta) string {
	if d.Divergent {
		return "+inf%"
	}
	return fmt.Sprintf("%+.2f%%", d.PercentChange)
}

func pathString(path []string) string {
	return strings.Join(path, " > ")
}
