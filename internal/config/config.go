// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the tool's general configuration: default RPC
// endpoint, log level, cache location and telemetry opt-in. Threshold
// policies live in internal/threshold, not here.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

// Config is the general configuration for stylus-trace.
type Config struct {
	RPCURL   string `json:"rpc_url,omitempty"`
	RPCToken string `json:"rpc_token,omitempty"`
	LogLevel string `json:"log_level,omitempty"`
	// CachePath is the directory holding the raw-trace cache database.
	CachePath string `json:"cache_path,omitempty"`
	// TelemetryEnabled turns on opt-in OTLP trace export.
	TelemetryEnabled  bool   `json:"telemetry_enabled,omitempty"`
	TelemetryEndpoint string `json:"telemetry_endpoint,omitempty"`
}

// DefaultConfig returns the built-in defaults: a local Nitro dev node and a
// cache under the user's home directory.
func DefaultConfig() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		RPCURL:    "http://localhost:8547",
		LogLevel:  "info",
		CachePath: filepath.Join(home, ".stylus-trace", "cache"),
	}
}

// ConfigPath returns the path of the configuration file.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".stylus-trace", "config.json"), nil
}

// LoadConfig reads the configuration file, falling back to defaults when it
// does not exist. Environment variables override file values.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err == nil {
		if data, readErr := os.ReadFile(path); readErr == nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errors.WrapConfigError("parsing "+path, err)
			}
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STYLUS_TRACE_RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := os.Getenv("STYLUS_TRACE_RPC_TOKEN"); v != "" {
		cfg.RPCToken = v
	}
	if v := os.Getenv("STYLUS_TRACE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STYLUS_TRACE_CACHE_PATH"); v != "" {
		cfg.CachePath = v
	}
	if v := os.Getenv("STYLUS_TRACE_OTLP_ENDPOINT"); v != "" {
		cfg.TelemetryEnabled = true
		cfg.TelemetryEndpoint = v
	}
}

// Save writes the configuration file, creating its directory as needed.
func (c *Config) Save() error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}
