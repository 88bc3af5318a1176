// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package report renders profiles and diff results as terminal text and as
// structured report documents for artifact files.
package report

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stylus-tools/stylus-trace/internal/diff"
)

// DiffReport is the JSON artifact written by the diff command. Field names
// are stable; CI tooling parses them.
type DiffReport struct {
	GeneratedAt time.Time    `json:"generated_at"`
	Baseline    string       `json:"baseline"`
	Target      string       `json:"target"`
	Result      *diff.Result `json:"result"`
}

// NewDiffReport wraps a diff result with artifact metadata.
func NewDiffReport(baselinePath, targetPath string, result *diff.Result) *DiffReport {
	return &DiffReport{
		GeneratedAt: time.Now().UTC(),
		Baseline:    baselinePath,
		Target:      targetPath,
		Result:      result,
	}
}

// Marshal serializes the report for the artifact file.
func (r *DiffReport) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling diff report: %w", err)
	}
	return append(data, '\n'), nil
}

// gasString renders a gas amount with thousands separators.
func gasString(v uint64) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

// inkString renders an optional Ink amount; absent means not measured.
func inkString(v *uint64) string {
	if v == nil {
		return "not measured"
	}
	return gasString(*v)
}
