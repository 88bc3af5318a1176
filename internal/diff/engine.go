// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package diff aligns two profiles, computes per-metric deltas and
// classifies them against a resolved threshold policy. The engine is
// stateless: every call works purely on its inputs and always completes
// with a verdict — classification anomalies are folded into the result,
// never raised.
package diff

import (
	"fmt"

	"github.com/stylus-tools/stylus-trace/internal/profile"
	"github.com/stylus-tools/stylus-trace/internal/threshold"
)

// Metric names used in the result maps and regression records.
const (
	MetricGas      = "gas"
	MetricInk      = "ink"
	MetricHostIO   = "hostio_calls"
	MetricHotPaths = "hot_paths"
)

// Verdict values for the whole comparison.
const (
	VerdictPass = "pass"
	VerdictFail = "fail"
)

// Hot-path delta classifications.
const (
	HotPathNew     = "new"
	HotPathDropped = "dropped"
	HotPathShifted = "shifted"
)

// MetricDelta is a whole-profile comparison of one metric.
type MetricDelta struct {
	Metric        string  `json:"metric"`
	BaselineValue uint64  `json:"baseline_value"`
	TargetValue   uint64  `json:"target_value"`
	PercentChange float64 `json:"percent_change"`

	// Divergent marks the zero-baseline, non-zero-target case: an
	// infinite increase that no percentage can express. It is reported,
	// not fatal, and fires a regression whenever the metric's threshold
	// is set.
	Divergent bool `json:"divergent,omitempty"`

	// Measured is false when the metric was not captured on both sides
	// (Ink accounting off in either profile). Unmeasured deltas are
	// informational placeholders and never classify as regressions.
	Measured bool `json:"measured"`
}

// HotPathDelta describes one path whose standing changed between the two
// profiles' top-N rankings.
type HotPathDelta struct {
	NodePath []string `json:"node_path"`
	Status   string   `json:"status"`

	// Ranks are 1-based; 0 means the path is absent from that side's
	// top-N.
	BaselineRank int `json:"baseline_rank,omitempty"`
	TargetRank   int `json:"target_rank,omitempty"`

	BaselineValue uint64 `json:"baseline_value,omitempty"`
	TargetValue   uint64 `json:"target_value,omitempty"`

	// PercentChange is the cost movement for paths present on both sides.
	PercentChange float64 `json:"percent_change,omitempty"`
}

// Regression records one threshold violation.
type Regression struct {
	Metric                string  `json:"metric"`
	ObservedPercentChange float64 `json:"observed_percent_change"`
	Threshold             float64 `json:"threshold"`
	// Divergent regressions fired on a zero baseline; their observed
	// percentage is meaningless and rendered as an infinite increase.
	Divergent bool   `json:"divergent,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Result is the complete output of one comparison. It is pure output: no
// retained state, and the inputs are never mutated.
type Result struct {
	BaselineTransaction string `json:"baseline_transaction"`
	TargetTransaction   string `json:"target_transaction"`

	MetricDeltas  map[string]MetricDelta `json:"metric_deltas"`
	HotPathDeltas []HotPathDelta         `json:"hot_path_deltas"`
	Regressions   []Regression           `json:"regressions"`

	// OverallVerdict is VerdictFail iff Regressions is non-empty.
	OverallVerdict string `json:"overall_verdict"`
}

// HasRegressions reports whether the comparison failed.
func (r *Result) HasRegressions() bool {
	return len(r.Regressions) > 0
}

// Diff compares a baseline against a target under the given policy.
// Phases run in fixed order: align, compute deltas, classify, aggregate.
func Diff(baseline, target *profile.Profile, policy threshold.Policy) *Result {
	result := &Result{
		BaselineTransaction: baseline.TransactionHash,
		TargetTransaction:   target.TransactionHash,
		MetricDeltas:        make(map[string]MetricDelta),
	}

	// 1. Whole-profile metric deltas.
	result.MetricDeltas[MetricGas] = computeDelta(MetricGas, baseline.TotalGas, target.TotalGas, true)
	result.MetricDeltas[MetricHostIO] = computeDelta(MetricHostIO, baseline.TotalHostIOCalls, target.TotalHostIOCalls, true)
	result.MetricDeltas[MetricInk] = inkDelta(baseline, target)

	// 2. Hot-path alignment by label sequence.
	result.HotPathDeltas = alignHotPaths(baseline.HotPaths, target.HotPaths, policy.HotPaths)

	// 3. Threshold classification.
	result.Regressions = classify(result, policy)

	// 4. Aggregate verdict.
	if result.HasRegressions() {
		result.OverallVerdict = VerdictFail
	} else {
		result.OverallVerdict = VerdictPass
	}
	return result
}

func computeDelta(metric string, baseline, target uint64, measured bool) MetricDelta {
	d := MetricDelta{
		Metric:        metric,
		BaselineValue: baseline,
		TargetValue:   target,
		Measured:      measured,
	}
	switch {
	case baseline == 0 && target == 0:
		d.PercentChange = 0
	case baseline == 0:
		d.Divergent = true
	default:
		d.PercentChange = (float64(target) - float64(baseline)) / float64(baseline) * 100
	}
	return d
}

// inkDelta compares Ink totals only when both captures measured them.
// A missing Ink total is "not measured", never zero.
func inkDelta(baseline, target *profile.Profile) MetricDelta {
	if baseline.TotalInk == nil || target.TotalInk == nil {
		return MetricDelta{Metric: MetricInk, Measured: false}
	}
	return computeDelta(MetricInk, *baseline.TotalInk, *target.TotalInk, true)
}

func alignHotPaths(baseline, target []profile.HotPath, hotPathThreshold *float64) []HotPathDelta {
	baseIdx := make(map[string]profile.HotPath, len(baseline))
	for _, hp := range baseline {
		baseIdx[profile.PathKey(hp.NodePath)] = hp
	}
	targetIdx := make(map[string]profile.HotPath, len(target))
	for _, hp := range target {
		targetIdx[profile.PathKey(hp.NodePath)] = hp
	}

	var deltas []HotPathDelta

	// Target order first so new paths surface in rank order.
	for _, thp := range target {
		key := profile.PathKey(thp.NodePath)
		bhp, ok := baseIdx[key]
		if !ok {
			deltas = append(deltas, HotPathDelta{
				NodePath:    thp.NodePath,
				Status:      HotPathNew,
				TargetRank:  thp.Rank,
				TargetValue: thp.MetricValue,
			})
			continue
		}

		costChange := 0.0
		costDivergent := false
		switch {
		case bhp.MetricValue == 0 && thp.MetricValue == 0:
		case bhp.MetricValue == 0:
			costDivergent = true
		default:
			costChange = (float64(thp.MetricValue) - float64(bhp.MetricValue)) / float64(bhp.MetricValue) * 100
		}

		shifted := bhp.Rank != thp.Rank || costDivergent
		if hotPathThreshold != nil && costChange > *hotPathThreshold {
			shifted = true
		}
		if !shifted {
			continue
		}
		deltas = append(deltas, HotPathDelta{
			NodePath:      thp.NodePath,
			Status:        HotPathShifted,
			BaselineRank:  bhp.Rank,
			TargetRank:    thp.Rank,
			BaselineValue: bhp.MetricValue,
			TargetValue:   thp.MetricValue,
			PercentChange: costChange,
		})
	}

	for _, bhp := range baseline {
		if _, ok := targetIdx[profile.PathKey(bhp.NodePath)]; !ok {
			deltas = append(deltas, HotPathDelta{
				NodePath:      bhp.NodePath,
				Status:        HotPathDropped,
				BaselineRank:  bhp.Rank,
				BaselineValue: bhp.MetricValue,
			})
		}
	}
	return deltas
}

// classify turns deltas into regressions. A metric regresses only when its
// threshold is set and the observed change exceeds it; unset thresholds are
// silently skipped. Divergent deltas regress unconditionally once their
// threshold is set, whatever its value.
func classify(result *Result, policy threshold.Policy) []Regression {
	var regressions []Regression

	checkMetric := func(metric string, th *float64) {
		if th == nil {
			return
		}
		d, ok := result.MetricDeltas[metric]
		if !ok || !d.Measured {
			return
		}
		if d.Divergent {
			regressions = append(regressions, Regression{
				Metric:    metric,
				Threshold: *th,
				Divergent: true,
				Detail: fmt.Sprintf("baseline %s is zero while target is %d (infinite increase)",
					metric, d.TargetValue),
			})
			return
		}
		if d.PercentChange > *th {
			regressions = append(regressions, Regression{
				Metric:                metric,
				ObservedPercentChange: d.PercentChange,
				Threshold:             *th,
			})
		}
	}

	checkMetric(MetricGas, policy.Gas)
	checkMetric(MetricHostIO, policy.HostIO)

	if policy.HotPaths != nil {
		if reg, fired := hotPathRegression(result.HotPathDeltas, *policy.HotPaths); fired {
			regressions = append(regressions, reg)
		}
	}
	return regressions
}

// hotPathRegression fires when a new hot path appeared or an aligned path's
// cost movement exceeds the threshold. Rank-only shifts and dropped paths
// are reported in the deltas but do not regress on their own.
func hotPathRegression(deltas []HotPathDelta, th float64) (Regression, bool) {
	worst := 0.0
	divergent := false
	detail := ""
	fired := false

	for _, d := range deltas {
		switch d.Status {
		case HotPathNew:
			fired = true
			divergent = true
			if detail == "" {
				detail = fmt.Sprintf("new hot path %s at rank %d", profile.PathKey(d.NodePath), d.TargetRank)
			}
		case HotPathShifted:
			if d.PercentChange > th && d.PercentChange > worst {
				fired = true
				worst = d.PercentChange
				detail = fmt.Sprintf("hot path %s cost up %.2f%%", profile.PathKey(d.NodePath), d.PercentChange)
			}
		}
	}
	if !fired {
		return Regression{}, false
	}
	return Regression{
		Metric:                MetricHotPaths,
		ObservedPercentChange: worst,
		Threshold:             th,
		Divergent:             divergent,
		Detail:                detail,
	}, true
}
