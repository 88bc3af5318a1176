// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/stylus-tools/stylus-trace/internal/errors"
	"github.com/stylus-tools/stylus-trace/internal/logger"
)

// RetryConfig defines the retry behavior for trace fetches.
type RetryConfig struct {
	MaxRetries         int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	JitterFraction     float64
	StatusCodesToRetry []int
}

// DefaultRetryConfig returns the retry configuration used by NewClient.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:         3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         10 * time.Second,
		JitterFraction:     0.1,
		StatusCodesToRetry: []int{429, 503, 504},
	}
}

// Retrier handles HTTP request retries with exponential backoff and jitter.
type Retrier struct {
	config RetryConfig
	client *http.Client
}

// NewRetrier creates a Retrier over the given HTTP client.
func NewRetrier(config RetryConfig, client *http.Client) *Retrier {
	if client == nil {
		client = http.DefaultClient
	}
	return &Retrier{config: config, client: client}
}

// Do executes an HTTP request, retrying transient failures and honoring
// Retry-After headers. Context cancellation wins over any backoff wait.
func (r *Retrier) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	backoff := r.config.InitialBackoff

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.waitWithContext(ctx, backoff); err != nil {
				return nil, errors.WrapRPCTimeout(err)
			}
		}

		clone := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("rewinding request body: %w", err)
			}
			clone.Body = body
		}

		resp, err := r.client.Do(clone)
		if err != nil {
			lastErr = err
			if attempt < r.config.MaxRetries {
				logger.Logger.Debug("Request failed, will retry", "attempt", attempt+1, "error", err)
			}
			backoff = r.nextBackoff(backoff)
			continue
		}

		if r.shouldRetry(resp.StatusCode) {
			lastErr = fmt.Errorf("status code %d", resp.StatusCode)
			retryAfter := r.getRetryAfter(resp)

			logger.Logger.Warn("Rate limited or temporary failure, will retry",
				"attempt", attempt+1,
				"status_code", resp.StatusCode,
				"retry_after", retryAfter,
			)

			resp.Body.Close()

			if retryAfter > 0 {
				backoff = retryAfter
			} else {
				backoff = r.nextBackoff(backoff)
			}

			if attempt < r.config.MaxRetries {
				continue
			}
			return nil, errors.WrapRPCConnectionFailed(lastErr)
		}

		return resp, nil
	}

	return nil, errors.WrapRPCConnectionFailed(lastErr)
}

func (r *Retrier) shouldRetry(statusCode int) bool {
	for _, code := range r.config.StatusCodesToRetry {
		if statusCode == code {
			return true
		}
	}
	return false
}

// getRetryAfter parses the Retry-After header, supporting both the seconds
// and HTTP-date formats (RFC 7231).
func (r *Retrier) getRetryAfter(resp *http.Response) time.Duration {
	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	if t, err := time.Parse(time.RFC1123, retryAfter); err == nil {
		if dur := time.Until(t); dur > 0 {
			return dur
		}
	}

	return 0
}

// nextBackoff doubles the current duration up to MaxBackoff and applies
// ±JitterFraction of jitter.
func (r *Retrier) nextBackoff(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 2)
	if next > r.config.MaxBackoff {
		next = r.config.MaxBackoff
	}

	if r.config.JitterFraction > 0 {
		jitterAmount := float64(next) * r.config.JitterFraction
		jitterRange := int64(math.Round(jitterAmount))
		if jitterRange > 0 {
			jitter := time.Duration(rand.Int63n(jitterRange*2) - jitterRange)
			next += jitter
			if next < 0 {
				next = 0
			}
		}
	}

	return next
}

func (r *Retrier) waitWithContext(ctx context.Context, duration time.Duration) error {
	select {
	case <-time.After(duration):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
