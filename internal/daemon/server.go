// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

// Package daemon exposes capture and diff over a local JSON-RPC endpoint so
// editors and CI sidecars can profile transactions without shelling out to
// the CLI for every request.
package daemon

import (
	"fmt"
	"net/http"
	"strings"

	gorillarpc "github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/stylus-tools/stylus-trace/internal/diff"
	"github.com/stylus-tools/stylus-trace/internal/profile"
	"github.com/stylus-tools/stylus-trace/internal/rpc"
	"github.com/stylus-tools/stylus-trace/internal/telemetry"
	"github.com/stylus-tools/stylus-trace/internal/threshold"
	"github.com/stylus-tools/stylus-trace/internal/trace"
)

// Config holds daemon configuration.
type Config struct {
	Addr      string
	RPCURL    string
	RPCToken  string
	AuthToken string
}

// Server is the JSON-RPC daemon.
type Server struct {
	rpcClient *rpc.Client
	authToken string
}

// NewServer creates a daemon server backed by the given node endpoint.
func NewServer(config Config) *Server {
	return &Server{
		rpcClient: rpc.NewClient(config.RPCURL, config.RPCToken),
		authToken: config.AuthToken,
	}
}

func (s *Server) authenticate(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ") == s.authToken
	}
	return auth == s.authToken
}

// CaptureRequest is the capture RPC request.
type CaptureRequest struct {
	Hash     string `json:"hash"`
	Tracer   string `json:"tracer,omitempty"`
	Ink      bool   `json:"ink,omitempty"`
	TopPaths int    `json:"top_paths,omitempty"`
}

// CaptureResponse carries the finished profile.
type CaptureResponse struct {
	Profile *profile.Profile `json:"profile"`
}

// Capture fetches, normalizes and profiles one transaction.
func (s *Server) Capture(r *http.Request, req *CaptureRequest, resp *CaptureResponse) error {
	if !s.authenticate(r) {
		return fmt.Errorf("unauthorized")
	}

	ctx, span := telemetry.GetTracer().Start(r.Context(), "daemon_capture")
	span.SetAttributes(attribute.String("transaction.hash", req.Hash))
	defer span.End()

	raw, err := s.rpcClient.FetchTrace(ctx, req.Hash, req.Tracer)
	if err != nil {
		return err
	}
	events, err := trace.Normalize(raw, req.Tracer, trace.Options{Ink: req.Ink})
	if err != nil {
		return err
	}
	p, err := profile.Build(events, profile.BuildOptions{
		TransactionHash: req.Hash,
		TracerName:      req.Tracer,
		Ink:             req.Ink,
		TopPaths:        req.TopPaths,
	})
	if err != nil {
		return err
	}
	resp.Profile = p
	return nil
}

// DiffRequest compares two profiles passed inline.
type DiffRequest struct {
	Baseline *profile.Profile `json:"baseline"`
	Target   *profile.Profile `json:"target"`

	ThresholdPercent *float64 `json:"threshold_percent,omitempty"`
	GasThreshold     *float64 `json:"gas_threshold,omitempty"`
	HostIOThreshold  *float64 `json:"hostio_threshold,omitempty"`
}

// DiffResponse carries the comparison result.
type DiffResponse struct {
	Result *diff.Result `json:"result"`
}

// Diff compares two profiles under the requested thresholds.
func (s *Server) Diff(r *http.Request, req *DiffRequest, resp *DiffResponse) error {
	if !s.authenticate(r) {
		return fmt.Errorf("unauthorized")
	}
	if req.Baseline == nil || req.Target == nil {
		return fmt.Errorf("both baseline and target profiles are required")
	}
	if err := req.Baseline.Validate(); err != nil {
		return fmt.Errorf("baseline: %w", err)
	}
	if err := req.Target.Validate(); err != nil {
		return fmt.Errorf("target: %w", err)
	}

	policy, err := threshold.Resolve(nil, threshold.Flags{
		Percent: req.ThresholdPercent,
		Gas:     req.GasThreshold,
		HostIO:  req.HostIOThreshold,
	})
	if err != nil {
		return err
	}

	resp.Result = diff.Diff(req.Baseline, req.Target, policy)
	return nil
}

// Handler builds the HTTP handler serving the JSON-RPC endpoint and a
// health check.
func (s *Server) Handler() (http.Handler, error) {
	server := gorillarpc.NewServer()
	server.RegisterCodec(json2.NewCodec(), "application/json")
	if err := server.RegisterService(s, "studio"); err != nil {
		return nil, fmt.Errorf("registering daemon service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/rpc", server)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	return mux, nil
}
