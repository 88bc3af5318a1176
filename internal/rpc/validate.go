// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/stylus-tools/stylus-trace/internal/errors"
)

// ValidateTransactionHash checks for a 0x-prefixed 32-byte hex hash.
func ValidateTransactionHash(hash string) error {
	if hash == "" {
		return errors.WrapValidationError("transaction hash cannot be empty")
	}
	if !strings.HasPrefix(hash, "0x") {
		return errors.WrapValidationError(fmt.Sprintf("transaction hash %q must start with 0x", hash))
	}
	digits := hash[2:]
	if len(digits) != 64 {
		return errors.WrapValidationError(
			fmt.Sprintf("transaction hash %q must be 32 bytes (64 hex digits), got %d", hash, len(digits)))
	}
	for _, c := range digits {
		if !isHexDigit(c) {
			return errors.WrapValidationError(fmt.Sprintf("transaction hash %q contains non-hex character %q", hash, c))
		}
	}
	return nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// ValidateURL checks that an RPC endpoint is a usable http(s) URL.
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return errors.WrapValidationError("RPC URL cannot be empty")
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return errors.WrapValidationError(fmt.Sprintf("invalid RPC URL: %v", err))
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errors.WrapValidationError(fmt.Sprintf("RPC URL scheme must be http or https, got %q", parsed.Scheme))
	}
	if parsed.Host == "" {
		return errors.WrapValidationError("RPC URL must include a host")
	}
	return nil
}
