// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "http://localhost:8547", cfg.RPCURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Contains(t, cfg.CachePath, ".stylus-trace")
	assert.False(t, cfg.TelemetryEnabled)
}

func TestLoadConfig_MissingFileFallsBackToDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8547", cfg.RPCURL)
}

func TestLoadConfig_ReadsFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".stylus-trace")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"rpc_url": "http://nitro:8547", "log_level": "debug"}`), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://nitro:8547", cfg.RPCURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_BadFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".stylus-trace")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{broken`), 0o600))

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	dir := filepath.Join(home, ".stylus-trace")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"),
		[]byte(`{"rpc_url": "http://file:8547"}`), 0o600))

	t.Setenv("STYLUS_TRACE_RPC_URL", "http://env:8547")
	t.Setenv("STYLUS_TRACE_RPC_TOKEN", "tok")
	t.Setenv("STYLUS_TRACE_CACHE_PATH", "/tmp/env-cache")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://env:8547", cfg.RPCURL)
	assert.Equal(t, "tok", cfg.RPCToken)
	assert.Equal(t, "/tmp/env-cache", cfg.CachePath)
}

func TestLoadConfig_OTLPEndpointEnablesTelemetry(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STYLUS_TRACE_OTLP_ENDPOINT", "collector:4318")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, "collector:4318", cfg.TelemetryEndpoint)
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	want := &Config{RPCURL: "http://saved:8547", LogLevel: "warn"}
	require.NoError(t, want.Save())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://saved:8547", cfg.RPCURL)
	assert.Equal(t, "warn", cfg.LogLevel)
}
