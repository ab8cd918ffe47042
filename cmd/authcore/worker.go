// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrgCentral Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/orgcentral/authcore/internal/authz"
	"github.com/orgcentral/authcore/internal/authz/audit"
	"github.com/orgcentral/authcore/internal/observability"
	"github.com/orgcentral/authcore/internal/store"
)

// NewWorkerCmd creates the worker subcommand.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background maintenance worker",
		Long: `Runs the long-lived maintenance process: replays any audit write-ahead
log left by embedding services, purges expired audit entries on the
retention schedule, and serves metrics and health probes.`,
		RunE: runWorker,
	}
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return oops.Code(authz.CodeConfigInvalid).Errorf("database_url is required")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sink := audit.NewPostgresSink(pool)
	logger := audit.NewLogger([]audit.Sink{sink},
		audit.WithDefaults(cfg.DefaultClassification(), cfg.DefaultResidency()),
		audit.WithWALPath(cfg.Audit.WALPath),
		audit.WithBufferSize(cfg.Audit.BufferSize),
	)
	defer logger.Close() //nolint:errcheck // drained below via signal path

	if err := logger.ReplayWAL(ctx); err != nil {
		slog.WarnContext(ctx, "audit WAL replay failed", "error", err)
	}

	retention := audit.NewRetentionWorker(audit.DefaultRetentionConfig(), sink)
	retention.Start(ctx)

	ready := func() bool { return pool.Ping(context.Background()) == nil }
	obs := observability.NewServer(cfg.MetricsAddr, ready)
	errCh, err := obs.Start()
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "maintenance worker started", "metrics_addr", obs.Addr())

	select {
	case <-ctx.Done():
	case serveErr := <-errCh:
		if serveErr != nil {
			slog.ErrorContext(ctx, "observability server failed", "error", serveErr)
		}
	}

	retention.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := obs.Stop(shutdownCtx); err != nil {
		return err
	}

	slog.Info("maintenance worker stopped")
	return nil
}
