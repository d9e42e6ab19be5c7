// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SiteDesk Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/sitedesk/sitedesk/internal/auth"
	authpg "github.com/sitedesk/sitedesk/internal/auth/postgres"
	"github.com/sitedesk/sitedesk/internal/httpapi"
	"github.com/sitedesk/sitedesk/internal/logging"
	"github.com/sitedesk/sitedesk/internal/observability"
	"github.com/sitedesk/sitedesk/internal/store"
)

// Default values for serve command flags.
const (
	defaultListenAddr  = ":8080"
	defaultMetricsAddr = "127.0.0.1:9100"
	defaultLogFormat   = "json"

	shutdownTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the SiteDesk API server",
		Long: `Start the HTTP API server. Serves the authentication endpoints,
resolves session tokens for every request, and runs the background sweeper
that prunes expired sessions and reset tokens.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServeConfig(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg, cmd)
		},
	}

	cmd.Flags().String("listen-addr", defaultListenAddr, "HTTP API listen address")
	cmd.Flags().String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	cmd.Flags().String("log-format", defaultLogFormat, "log format (json or text)")
	cmd.Flags().String("database-url", "", "PostgreSQL URL (default: DATABASE_URL env)")
	cmd.Flags().Bool("debug", false, "debug mode (verbose gin output, reset tokens in responses)")
	cmd.Flags().Bool("secure-cookies", true, "set the Secure attribute on session cookies")
	cmd.Flags().Duration("sweep-interval", auth.DefaultSweepInterval, "expired-record sweep interval")

	return cmd
}

func runServe(ctx context.Context, cfg *serveConfig, cmd *cobra.Command) error {
	logging.SetDefault("sitedesk", version, cfg.LogFormat)
	logger := slog.Default()

	logger.Info("starting sitedesk",
		"listen_addr", cfg.ListenAddr,
		"log_format", cfg.LogFormat,
	)

	pool, err := store.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").
			With("operation", "connect to database").
			Wrap(err)
	}
	defer pool.Close()

	logger.Info("connected to database")

	principals := authpg.NewPrincipalRepository(pool)
	sessions := authpg.NewSessionRepository(pool)
	resets := authpg.NewResetTokenRepository(pool)
	hasher := auth.NewScryptHasher()

	authSvc, err := auth.NewAuthServiceWithLogger(principals, sessions, hasher, logger)
	if err != nil {
		return err
	}
	resetSvc, err := auth.NewPasswordResetServiceWithLogger(principals, resets, hasher, logger)
	if err != nil {
		return err
	}
	sweeper, err := auth.NewSweeper(sessions, resets, logger, cfg.SweepInterval)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Observability server (optional).
	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrChan, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").
				With("addr", cfg.MetricsAddr).
				Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())

		sweeper.SetObserver(func(sessions, resets int64) {
			metrics.RecordSwept("sessions", sessions)
			metrics.RecordSwept("reset_tokens", resets)
		})
	}

	go sweeper.Run(ctx)

	apiServer, err := httpapi.NewServer(httpapi.Config{
		Addr:          cfg.ListenAddr,
		Debug:         cfg.Debug,
		SecureCookies: cfg.SecureCookies,
	}, authSvc, resetSvc, logger, metrics)
	if err != nil {
		return err
	}

	apiErrChan, err := apiServer.Start()
	if err != nil {
		return oops.Code("API_START_FAILED").
			With("addr", cfg.ListenAddr).
			Wrap(err)
	}

	cmd.Println("SiteDesk API server started")
	logger.Info("sitedesk ready", "addr", apiServer.Addr())

	// Wait for shutdown signal or server failure.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-apiErrChan:
		logger.Error("API server failed", "error", err)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := apiServer.Stop(shutdownCtx); err != nil {
		logger.Warn("failed to stop API server cleanly", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			logger.Warn("failed to stop observability server cleanly", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the serve context when a background server
// reports a fatal error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errChan <-chan error, name string) {
	select {
	case <-ctx.Done():
	case err, ok := <-errChan:
		if ok && err != nil {
			slog.Error("background server failed", "server", name, "error", err)
			cancel()
		}
	}
}
