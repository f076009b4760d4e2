// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sarathi Contributors

package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sarathi-ai/sarathi/internal/config"
	"github.com/sarathi-ai/sarathi/internal/server"
	"github.com/sarathi-ai/sarathi/internal/telemetry"
	sarathierr "github.com/sarathi-ai/sarathi/pkg/errors"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sarathi HTTP server",
		Long:  "Load configuration, build the configured providers, and serve the generation API until interrupted.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cfg.NewLogger()
	metrics := telemetry.NewCollector()

	mgr, err := cfg.BuildManager(logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			logger.Warn("closing providers", "error", err)
		}
	}()

	srv, err := server.New(server.Config{
		ListenAddr:      cfg.Server.Listen,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, mgr, logger, metrics)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return sarathierr.Wrap(err, sarathierr.CodeServerStartFailure, "running server")
	}
	logger.Info("server stopped")
	return nil
}
