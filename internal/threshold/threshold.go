// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package threshold merges regression-threshold configuration from a TOML
// file, CLI flags and built-in defaults into one effective policy.
package threshold

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

// MaxPercent bounds every threshold value; percentages above this are
// configuration mistakes, not policies.
const MaxPercent = 100_000.0

// Policy is the resolved per-metric threshold set. A nil entry means the
// metric is not checked at all — unset never means zero.
type Policy struct {
	Gas      *float64
	HostIO   *float64
	HotPaths *float64
}

// IsEmpty reports whether no metric is checked.
func (p Policy) IsEmpty() bool {
	return p.Gas == nil && p.HostIO == nil && p.HotPaths == nil
}

// FileConfig is the shape of a threshold TOML file:
//
//	[thresholds]
//	gas = 5.0
//	hostio = 8.0
//	hot_paths = 12.5
type FileConfig struct {
	Thresholds struct {
		Gas      *float64 `toml:"gas"`
		HostIO   *float64 `toml:"hostio"`
		HotPaths *float64 `toml:"hot_paths"`
	} `toml:"thresholds"`
}

// Flags carries the threshold-related CLI flags. Percent is the blanket
// flag; Gas and HostIO are the strict-focus metric flags.
type Flags struct {
	Percent *float64
	Gas     *float64
	HostIO  *float64
}

// LoadFile parses a threshold TOML file. A missing path (empty string) is
// not an error and yields an empty config.
func LoadFile(path string) (*FileConfig, error) {
	var cfg FileConfig
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapConfigError(fmt.Sprintf("reading threshold file %s", path), err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapConfigError(fmt.Sprintf("parsing threshold file %s", path), err)
	}
	return &cfg, nil
}

// Resolve layers threshold sources into one policy. Order of application:
// built-in defaults (all unset), then file values, then the blanket percent
// flag onto any metric still unset, then metric-specific flags. A
// metric-specific flag switches to strict-focus mode: only the explicitly
// flagged metrics are checked, whatever the file or blanket flag said.
func Resolve(file *FileConfig, flags Flags) (Policy, error) {
	var policy Policy

	if file != nil {
		policy.Gas = file.Thresholds.Gas
		policy.HostIO = file.Thresholds.HostIO
		policy.HotPaths = file.Thresholds.HotPaths
	}

	if flags.Percent != nil {
		if policy.Gas == nil {
			policy.Gas = flags.Percent
		}
		if policy.HostIO == nil {
			policy.HostIO = flags.Percent
		}
		if policy.HotPaths == nil {
			policy.HotPaths = flags.Percent
		}
	}

	if flags.Gas != nil || flags.HostIO != nil {
		policy = Policy{Gas: flags.Gas, HostIO: flags.HostIO}
	}

	if err := validate(policy); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

func validate(p Policy) error {
	check := func(name string, v *float64) error {
		if v == nil {
			return nil
		}
		if *v < 0 || *v > MaxPercent {
			return errors.WrapConfigError(
				fmt.Sprintf("%s threshold %.2f outside [0, %.0f] percent", name, *v, MaxPercent), nil)
		}
		return nil
	}
	if err := check("gas", p.Gas); err != nil {
		return err
	}
	if err := check("hostio", p.HostIO); err != nil {
		return err
	}
	return check("hot_paths", p.HotPaths)
}
