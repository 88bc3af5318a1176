// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveArtifactPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		category string
		want     string
	}{
		{
			name:     "bare filename goes under artifacts",
			path:     "profile.json",
			category: "profiles",
			want:     filepath.Join("artifacts", "profiles", "profile.json"),
		},
		{
			name:     "relative path is kept",
			path:     filepath.Join("out", "profile.json"),
			category: "profiles",
			want:     filepath.Join("out", "profile.json"),
		},
		{
			name:     "absolute path is kept",
			path:     "/tmp/profile.json",
			category: "profiles",
			want:     "/tmp/profile.json",
		},
		{
			name:     "empty stays empty",
			path:     "",
			category: "profiles",
			want:     "",
		},
		{
			name:     "flamegraph category",
			path:     "flamegraph.svg",
			category: "flamegraphs",
			want:     filepath.Join("artifacts", "flamegraphs", "flamegraph.svg"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resolveArtifactPath(tt.path, tt.category))
		})
	}
}

func TestOptionalFlagValue(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	var v float64
	cmd.Flags().Float64Var(&v, "gas-threshold", 0, "")

	assert.Nil(t, optionalFlagValue(cmd, "gas-threshold", v), "untouched flag reads as unset")

	require.NoError(t, cmd.Flags().Set("gas-threshold", "0"))
	got := optionalFlagValue(cmd, "gas-threshold", v)
	require.NotNil(t, got, "an explicit zero is set, not absent")
	assert.Equal(t, 0.0, *got)

	require.NoError(t, cmd.Flags().Set("gas-threshold", "7.5"))
	got = optionalFlagValue(cmd, "gas-threshold", v)
	require.NotNil(t, got)
	assert.Equal(t, 7.5, *got)
}

func TestTracerOrDefault(t *testing.T) {
	t.Cleanup(func() { captureTracerFlag = "" })

	captureTracerFlag = ""
	assert.Equal(t, "stylusTracer", tracerOrDefault())

	captureTracerFlag = "callTracer"
	assert.Equal(t, "callTracer", tracerOrDefault())
}
