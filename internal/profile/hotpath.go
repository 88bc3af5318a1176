// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

// Metric selects the cost dimension used to rank hot paths.
type Metric string

const (
	MetricGas         Metric = "gas"
	MetricInk         Metric = "ink"
	MetricHostIOCount Metric = "hostio"
)

// ParseMetric converts a user-supplied metric name.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gas":
		return MetricGas, nil
	case "ink":
		return MetricInk, nil
	case "hostio", "hostio_count", "hostios":
		return MetricHostIOCount, nil
	default:
		return "", errors.WrapValidationError(fmt.Sprintf("unknown metric %q (want gas, ink or hostio)", s))
	}
}

// PathKey joins a node path into the canonical string used for cross-profile
// alignment. Semicolons match folded-stack conventions, so keys double as
// flamegraph input lines.
func PathKey(path []string) string {
	return strings.Join(path, ";")
}

type scoredPath struct {
	path   []string
	value  uint64
	hostio uint64
	order  int
}

// TopPaths ranks every distinct root-to-node path by its node's cumulative
// metric and returns the n highest. The same label at different depths is a
// different path. Ties break on greater subtree HostIO count, then earlier
// traversal order; output is fully deterministic.
func TopPaths(p *Profile, n int, metric Metric) ([]HotPath, error) {
	if p == nil || p.Root == nil {
		return nil, errors.WrapValidationError("profile has no call tree")
	}
	if n <= 0 {
		return nil, errors.WrapValidationError(fmt.Sprintf("top path count must be positive, got %d", n))
	}
	if metric == MetricInk && p.TotalInk == nil {
		return nil, errors.WrapValidationError("profile was captured without Ink accounting; cannot rank by ink")
	}

	var scored []scoredPath
	order := 0
	p.Root.Walk(func(path []string, node *Node) {
		var value uint64
		switch metric {
		case MetricGas:
			value = node.CumulativeGas
		case MetricInk:
			if node.CumulativeInk != nil {
				value = *node.CumulativeInk
			}
		case MetricHostIOCount:
			value = node.HostIOCount
		}
		scored = append(scored, scoredPath{
			path:   path,
			value:  value,
			hostio: node.HostIOCount,
			order:  order,
		})
		order++
	})

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].value != scored[j].value {
			return scored[i].value > scored[j].value
		}
		if scored[i].hostio != scored[j].hostio {
			return scored[i].hostio > scored[j].hostio
		}
		return scored[i].order < scored[j].order
	})

	if n > len(scored) {
		n = len(scored)
	}
	result := make([]HotPath, 0, n)
	for i := 0; i < n; i++ {
		result = append(result, HotPath{
			NodePath:    scored[i].path,
			MetricValue: scored[i].value,
			Rank:        i + 1,
		})
	}
	return result, nil
}
