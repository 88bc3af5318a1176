// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc fetches raw execution traces from an Arbitrum Nitro node over
// JSON-RPC. It is the only networked collaborator of the profiling core;
// everything downstream works on the materialized trace document.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/stylus-tools/stylus-trace/internal/errors"
	"github.com/stylus-tools/stylus-trace/internal/logger"
	"github.com/stylus-tools/stylus-trace/internal/telemetry"
	"github.com/stylus-tools/stylus-trace/internal/trace"
)

// DefaultRPCURL is the stock Nitro dev-node endpoint.
const DefaultRPCURL = "http://localhost:8547"

// authTransport adds a Bearer token to outgoing requests.
type authTransport struct {
	token     string
	transport http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}
	return t.transport.RoundTrip(req)
}

// Client talks debug_traceTransaction to one node.
type Client struct {
	URL     string
	retrier *Retrier
}

// NewClient builds a client for the given endpoint. An empty URL falls back
// to DefaultRPCURL; an empty token falls back to STYLUS_TRACE_RPC_TOKEN.
func NewClient(url, token string) *Client {
	if url == "" {
		url = DefaultRPCURL
	}
	if token == "" {
		token = os.Getenv("STYLUS_TRACE_RPC_TOKEN")
	}

	httpClient := http.DefaultClient
	if token != "" {
		httpClient = &http.Client{
			Transport: &authTransport{token: token, transport: http.DefaultTransport},
		}
		logger.Logger.Debug("RPC client initialized with authentication")
	}

	return &Client{
		URL:     url,
		retrier: NewRetrier(DefaultRetryConfig(), httpClient),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// traceConfig is the second debug_traceTransaction parameter.
type traceConfig struct {
	Tracer  string `json:"tracer"`
	Timeout string `json:"timeout,omitempty"`
}

// FetchTrace retrieves the raw tracer output for a transaction. The whole
// document is materialized before returning; streaming is not supported by
// the profiling core.
func (c *Client) FetchTrace(ctx context.Context, txHash, tracerName string) (json.RawMessage, error) {
	if tracerName == "" {
		tracerName = trace.DefaultTracer
	}

	ctx, span := telemetry.GetTracer().Start(ctx, "rpc_fetch_trace")
	span.SetAttributes(
		attribute.String("transaction.hash", txHash),
		attribute.String("tracer.name", tracerName),
	)
	defer span.End()

	if err := ValidateTransactionHash(txHash); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "debug_traceTransaction",
		Params:  []interface{}{txHash, traceConfig{Tracer: tracerName, Timeout: "60s"}},
	})
	if err != nil {
		return nil, fmt.Errorf("encoding trace request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building trace request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.retrier.Do(ctx, req)
	if err != nil {
		return nil, errors.WrapRPCConnectionFailed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.WrapRPCConnectionFailed(fmt.Errorf("node returned status %d", resp.StatusCode))
	}

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, errors.WrapRPCConnectionFailed(fmt.Errorf("decoding trace response: %w", err))
	}
	if decoded.Error != nil {
		if decoded.Error.Code == -32000 {
			return nil, errors.WrapTransactionNotFound(txHash)
		}
		return nil, errors.WrapRPCConnectionFailed(
			fmt.Errorf("node error %d: %s", decoded.Error.Code, decoded.Error.Message))
	}
	if len(decoded.Result) == 0 || string(decoded.Result) == "null" {
		return nil, errors.WrapTransactionNotFound(txHash)
	}

	logger.Logger.Debug("Fetched trace",
		"tx", txHash, "tracer", tracerName,
		"bytes", len(decoded.Result), "elapsed", time.Since(start))
	return decoded.Result, nil
}
