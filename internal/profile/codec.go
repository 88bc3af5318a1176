// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package profile

import (
	"encoding/json"
	"fmt"
	"os"

	version "github.com/hashicorp/go-version"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

// SchemaVersion is stamped on every profile this build writes.
const SchemaVersion = "1.2.0"

// supportedSchema is the constraint a loaded profile's schema_version must
// satisfy. Minor bumps stay readable; a major bump breaks compatibility.
const supportedSchema = ">= 1.0.0, < 2.0.0"

// Marshal serializes a profile with stable field names and indentation
// suitable for artifact files.
func Marshal(p *Profile) ([]byte, error) {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling profile: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal parses a serialized profile and validates its structure.
// Round-tripping through Marshal and Unmarshal reproduces an equal Profile.
func Unmarshal(data []byte) (*Profile, error) {
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, errors.WrapProfileSchema("<memory>", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Load reads and validates a profile artifact from disk.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapProfileSchema(path, err)
	}
	p, err := Unmarshal(data)
	if err != nil {
		return nil, errors.WrapProfileSchema(path, err)
	}
	return p, nil
}

// Save writes a profile artifact, creating parent directories as needed.
func Save(p *Profile, path string) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing profile %s: %w", path, err)
	}
	return nil
}

// Validate checks structural invariants: a supported schema version, a
// present call tree, and totals that agree with the root rollup.
func (p *Profile) Validate() error {
	if p.SchemaVersion == "" {
		return errors.WrapProfileSchema(p.TransactionHash, fmt.Errorf("missing schema_version"))
	}
	v, err := version.NewVersion(p.SchemaVersion)
	if err != nil {
		return errors.WrapProfileSchema(p.TransactionHash, fmt.Errorf("bad schema_version %q: %w", p.SchemaVersion, err))
	}
	constraint, err := version.NewConstraint(supportedSchema)
	if err != nil {
		return fmt.Errorf("parsing schema constraint: %w", err)
	}
	if !constraint.Check(v) {
		return errors.WrapProfileSchema(p.TransactionHash,
			fmt.Errorf("schema_version %s outside supported range %s", p.SchemaVersion, supportedSchema))
	}

	if p.Root == nil {
		return errors.WrapProfileSchema(p.TransactionHash, fmt.Errorf("missing root node"))
	}
	if p.TotalGas != p.Root.CumulativeGas {
		return errors.WrapProfileSchema(p.TransactionHash,
			fmt.Errorf("total_gas %d disagrees with root cumulative_gas %d", p.TotalGas, p.Root.CumulativeGas))
	}
	if p.TotalHostIOCalls != p.Root.HostIOCount {
		return errors.WrapProfileSchema(p.TransactionHash,
			fmt.Errorf("total_hostio_calls %d disagrees with root hostio_count %d", p.TotalHostIOCalls, p.Root.HostIOCount))
	}
	if p.TotalInk != nil {
		if p.Root.CumulativeInk == nil || *p.TotalInk != *p.Root.CumulativeInk {
			return errors.WrapProfileSchema(p.TransactionHash,
				fmt.Errorf("total_ink disagrees with root cumulative_ink"))
		}
	}

	for i, hp := range p.HotPaths {
		if hp.Rank != i+1 {
			return errors.WrapProfileSchema(p.TransactionHash,
				fmt.Errorf("hot path %d has rank %d, want %d", i, hp.Rank, i+1))
		}
		if len(hp.NodePath) == 0 {
			return errors.WrapProfileSchema(p.TransactionHash,
				fmt.Errorf("hot path %d has an empty node path", i))
		}
	}
	return nil
}
