// Copyright 2025 Stylus Trace Studio Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stylus-tools/stylus-trace/internal/config"
	"github.com/stylus-tools/stylus-trace/internal/daemon"
	"github.com/stylus-tools/stylus-trace/internal/logger"
	"github.com/stylus-tools/stylus-trace/internal/rpc"
	"github.com/stylus-tools/stylus-trace/internal/shutdown"
	"github.com/stylus-tools/stylus-trace/internal/telemetry"
)

var (
	serveAddrFlag      string
	serveRPCURLFlag    string
	serveAuthTokenFlag string
)

// shutdownGrace is how long a stopping daemon waits for in-flight requests.
const shutdownGrace = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a local JSON-RPC daemon exposing capture and diff",
	Long: `Start a long-running daemon that profiles transactions and diffs
profiles over JSON-RPC, for editor integrations and CI sidecars.

Methods: studio.Capture, studio.Diff. Endpoint: POST /rpc.

Example:
  stylus-trace serve --addr 127.0.0.1:7433 --rpc-url http://localhost:8547`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if serveRPCURLFlag != "" {
			return rpc.ValidateURL(serveRPCURLFlag)
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		rpcURL := serveRPCURLFlag
		if rpcURL == "" {
			rpcURL = cfg.RPCURL
		}

		teardown := shutdown.NewSequence()

		cleanup, err := telemetry.Init(cmd.Context(), telemetry.Config{
			Enabled:     cfg.TelemetryEnabled,
			ExporterURL: cfg.TelemetryEndpoint,
			Version:     Version,
		})
		if err != nil {
			return err
		}
		teardown.Register("telemetry", func(context.Context) error {
			cleanup()
			return nil
		})

		handler, err := daemon.NewServer(daemon.Config{
			RPCURL:    rpcURL,
			RPCToken:  cfg.RPCToken,
			AuthToken: serveAuthTokenFlag,
		}).Handler()
		if err != nil {
			return err
		}

		httpServer := &http.Server{Addr: serveAddrFlag, Handler: handler}
		teardown.Register("http server", httpServer.Shutdown)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		serveErr := make(chan error, 1)
		go func() {
			logger.Logger.Info("Daemon listening", "addr", serveAddrFlag)
			serveErr <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-serveErr:
			return err
		case <-ctx.Done():
		}

		logger.Logger.Info("Shutting down", "grace", shutdownGrace)
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := teardown.Run(graceCtx); err != nil {
			return err
		}
		if err := <-serveErr; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddrFlag, "addr", "127.0.0.1:7433",
		"Listen address for the daemon")
	serveCmd.Flags().StringVar(&serveRPCURLFlag, "rpc-url", "",
		"Node RPC endpoint (defaults to the configured node)")
	serveCmd.Flags().StringVar(&serveAuthTokenFlag, "auth-token", "",
		"Require this Bearer token on daemon requests")

	rootCmd.AddCommand(serveCmd)
}
