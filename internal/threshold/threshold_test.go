// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package threshold

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

func pct(v float64) *float64 { return &v }

func writeTOML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "thresholds.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFile_Full(t *testing.T) {
	path := writeTOML(t, `
[thresholds]
gas = 5.0
hostio = 8.0
hot_paths = 12.5
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Thresholds.Gas)
	assert.Equal(t, 5.0, *cfg.Thresholds.Gas)
	assert.Equal(t, 8.0, *cfg.Thresholds.HostIO)
	assert.Equal(t, 12.5, *cfg.Thresholds.HotPaths)
}

func TestLoadFile_PartialLeavesOthersUnset(t *testing.T) {
	path := writeTOML(t, "[thresholds]\ngas = 3.0\n")
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, cfg.Thresholds.Gas)
	assert.Nil(t, cfg.Thresholds.HostIO, "absent keys stay unset, never zero")
	assert.Nil(t, cfg.Thresholds.HotPaths)
}

func TestLoadFile_EmptyPathIsNotAnError(t *testing.T) {
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Nil(t, cfg.Thresholds.Gas)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestLoadFile_BadTOML(t *testing.T) {
	path := writeTOML(t, "[thresholds\ngas = ")
	_, err := LoadFile(path)
	assert.ErrorIs(t, err, errors.ErrConfig)
}

func TestResolve_NoSourcesMeansNothingChecked(t *testing.T) {
	policy, err := Resolve(nil, Flags{})
	require.NoError(t, err)
	assert.True(t, policy.IsEmpty())
}

func TestResolve_FileIsBaseLayer(t *testing.T) {
	var file FileConfig
	file.Thresholds.Gas = pct(5.0)
	file.Thresholds.HotPaths = pct(12.0)

	policy, err := Resolve(&file, Flags{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, *policy.Gas)
	assert.Nil(t, policy.HostIO)
	assert.Equal(t, 12.0, *policy.HotPaths)
}

func TestResolve_BlanketFillsOnlyUnsetMetrics(t *testing.T) {
	var file FileConfig
	file.Thresholds.Gas = pct(5.0)

	policy, err := Resolve(&file, Flags{Percent: pct(10.0)})
	require.NoError(t, err)
	assert.Equal(t, 5.0, *policy.Gas, "file value wins over blanket")
	assert.Equal(t, 10.0, *policy.HostIO)
	assert.Equal(t, 10.0, *policy.HotPaths)
}

func TestResolve_MetricFlagIsStrictFocus(t *testing.T) {
	// An explicit per-metric flag disables every other metric, whatever
	// the file or blanket flag said.
	var file FileConfig
	file.Thresholds.Gas = pct(5.0)
	file.Thresholds.HostIO = pct(8.0)
	file.Thresholds.HotPaths = pct(12.0)

	policy, err := Resolve(&file, Flags{Percent: pct(10.0), Gas: pct(2.5)})
	require.NoError(t, err)
	require.NotNil(t, policy.Gas)
	assert.Equal(t, 2.5, *policy.Gas)
	assert.Nil(t, policy.HostIO)
	assert.Nil(t, policy.HotPaths)
}

func TestResolve_BothMetricFlags(t *testing.T) {
	policy, err := Resolve(nil, Flags{Gas: pct(1.0), HostIO: pct(2.0)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, *policy.Gas)
	assert.Equal(t, 2.0, *policy.HostIO)
	assert.Nil(t, policy.HotPaths)
}

func TestResolve_ZeroIsAValidThreshold(t *testing.T) {
	policy, err := Resolve(nil, Flags{Percent: pct(0)})
	require.NoError(t, err)
	require.NotNil(t, policy.Gas)
	assert.Equal(t, 0.0, *policy.Gas, "zero means any increase regresses; it is not unset")
}

func TestResolve_RejectsOutOfRange(t *testing.T) {
	_, err := Resolve(nil, Flags{Percent: pct(-1)})
	assert.ErrorIs(t, err, errors.ErrConfig)

	_, err = Resolve(nil, Flags{Gas: pct(MaxPercent + 1)})
	assert.ErrorIs(t, err, errors.ErrConfig)

	var file FileConfig
	file.Thresholds.HotPaths = pct(-0.5)
	_, err = Resolve(&file, Flags{})
	assert.ErrorIs(t, err, errors.ErrConfig)
}
