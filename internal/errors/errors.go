// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is
var (
	ErrMalformedTrace      = errors.New("malformed trace")
	ErrUnbalancedTrace     = errors.New("unbalanced trace")
	ErrConfig              = errors.New("invalid threshold configuration")
	ErrProfileSchema       = errors.New("profile schema violation")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRPCConnectionFailed = errors.New("RPC connection failed")
	ErrRPCTimeout          = errors.New("RPC request timed out")
	ErrValidation          = errors.New("validation failed")
)

// Wrap functions for consistent error wrapping

func WrapMalformedTrace(txHash string, err error) error {
	return fmt.Errorf("%w: tx %s: %w", ErrMalformedTrace, txHash, err)
}

func WrapUnbalancedTrace(msg string) error {
	return fmt.Errorf("%w: %s", ErrUnbalancedTrace, msg)
}

func WrapConfigError(msg string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrConfig, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrConfig, msg, err)
}

func WrapProfileSchema(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrProfileSchema, path, err)
}

func WrapTransactionNotFound(txHash string) error {
	return fmt.Errorf("%w: %s", ErrTransactionNotFound, txHash)
}

func WrapRPCConnectionFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrRPCConnectionFailed, err)
}

func WrapRPCTimeout(err error) error {
	return fmt.Errorf("%w: %w", ErrRPCTimeout, err)
}

func WrapValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
