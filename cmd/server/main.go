// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/tomtom215/authsentry/internal/api"
	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/supervisor"
	"github.com/tomtom215/authsentry/internal/supervisor/services"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("AuthSentry stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Bool("detection_enabled", cfg.Detection.Enabled).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Bool("geoip_enabled", cfg.GeoIP.Enabled).
		Bool("webhook_enabled", cfg.Webhook.Enabled).
		Msg("Starting AuthSentry")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, closeEngine, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer closeEngine()

	handler := api.NewHandler(engine)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	if cfg.NATS.Enabled {
		pipeline, err := newPipeline(ctx, cfg, engine, handler)
		if err != nil {
			return err
		}
		tree.AddMessagingService(services.NewPipelineService(pipeline, cfg.NATS.RouterCloseTimeout))
	}

	tree.AddEngineService(services.NewDetectionService(engine))
	tree.AddAPIService(services.NewHTTPServerService(newHTTPServer(cfg, handler), cfg.Server.ShutdownTimeout))

	logging.Info().Str("addr", cfg.Server.Addr()).Msg("HTTP API listening")

	err = tree.Serve(ctx)
	if report, reportErr := tree.UnstoppedServiceReport(); reportErr == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("service did not stop within the shutdown timeout")
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("supervisor tree failed: %w", err)
	}

	logging.Info().Msg("AuthSentry stopped")
	return nil
}
