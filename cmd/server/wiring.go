// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/tomtom215/authsentry/internal/api"
	"github.com/tomtom215/authsentry/internal/config"
	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/eventprocessor"
	"github.com/tomtom215/authsentry/internal/geoip"
	"github.com/tomtom215/authsentry/internal/logging"
)

var errPipelineNotRunning = errors.New("nats pipeline not running")

// detectionConfig maps the application config onto the engine config.
func detectionConfig(cfg *config.Config) detection.Config {
	d := cfg.Detection

	disabled := make([]detection.AlertType, 0, len(d.DisabledDetectors))
	for _, name := range d.DisabledDetectors {
		disabled = append(disabled, detection.AlertType(name))
	}

	return detection.Config{
		MaxAttemptsPerUser: d.MaxAttemptsPerUser,
		LocationPrecision:  d.LocationPrecision,
		RetentionDays:      cfg.Retention.Days,
		CleanupInterval:    cfg.Retention.CleanupInterval,
		NotifyTimeout:      d.NotifyTimeout,
		DisabledDetectors:  disabled,
		ImpossibleTravel: detection.ImpossibleTravelConfig{
			MaxSpeedKmH:     d.TravelMaxSpeedKmh,
			MaxTimeGapHours: d.TravelMaxTimeGap.Hours(),
			HistoryLimit:    d.TravelHistoryLimit,
			MinTimeHours:    d.TravelMinHours,
		},
		AutomatedAttack: detection.AutomatedAttackConfig{
			WindowMinutes:        int(d.AttackWindow.Minutes()),
			MaxAttempts:          d.AttackMaxAttempts,
			UserAgentMinAttempts: d.AttackUAMinAttempts,
			UserAgentRatio:       d.AttackUADiversityRatio,
		},
		SuspiciousTiming: detection.SuspiciousTimingConfig{
			MinSuccessfulAttempts: d.TimingMinSuccesses,
			UsualHourRatio:        d.TimingUsualHourRatio,
			NightStartHour:        d.TimingNightStartHour,
			NightEndHour:          d.TimingNightEndHour,
			Timezone:              d.TimingTimezone,
		},
	}
}

func webhookConfig(w config.WebhookConfig) detection.WebhookConfig {
	return detection.WebhookConfig{
		WebhookURL:         w.URL,
		Headers:            w.Headers,
		Enabled:            w.Enabled,
		Timeout:            w.Timeout,
		RateLimit:          w.RateLimit,
		Burst:              w.Burst,
		BreakerMaxFailures: w.BreakerMaxFailures,
		BreakerTimeout:     w.BreakerTimeout,
	}
}

// newEngine builds the engine with its notifiers and optional GeoIP
// resolver. The returned cleanup closes the resolver.
func newEngine(cfg *config.Config) (*detection.Engine, func(), error) {
	engine, err := detection.NewEngine(detectionConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create detection engine: %w", err)
	}
	engine.SetEnabled(cfg.Detection.Enabled)

	if cfg.Webhook.Enabled {
		engine.RegisterNotifier(detection.NewWebhookNotifier(webhookConfig(cfg.Webhook)))
		logging.Info().Msg("webhook alert notifier registered")
	}

	cleanup := func() {}
	if cfg.GeoIP.Enabled {
		resolver, err := geoip.Open(geoip.Config{
			CityDBPath: cfg.GeoIP.CityDBPath,
			CacheSize:  cfg.GeoIP.CacheSize,
			CacheTTL:   cfg.GeoIP.CacheTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		engine.SetGeoResolver(resolver)
		cleanup = func() {
			if err := resolver.Close(); err != nil {
				logging.Warn().Err(err).Msg("failed to close GeoIP database")
			}
		}
		logging.Info().Str("path", cfg.GeoIP.CityDBPath).Msg("GeoIP resolver enabled")
	}

	return engine, cleanup, nil
}

// newPipeline connects the NATS pipeline, feeds it to the engine and
// registers the alert publisher and readiness check.
func newPipeline(ctx context.Context, cfg *config.Config, engine *detection.Engine, handler *api.Handler) (*eventprocessor.Pipeline, error) {
	consumer := detection.NewWatermillHandler(engine, 0)

	pipeline, err := eventprocessor.NewPipeline(ctx, eventprocessor.SettingsFromConfig(&cfg.NATS), consumer.Handle, logging.NewWatermillAdapter())
	if err != nil {
		return nil, fmt.Errorf("failed to start NATS pipeline: %w", err)
	}

	if cfg.NATS.PublishAlerts {
		engine.RegisterNotifier(detection.NewPublisherNotifier(pipeline.Publisher(), pipeline.AlertsTopic()))
	}

	handler.AddReadinessCheck("nats", func(context.Context) error {
		if !pipeline.IsRunning() {
			return errPipelineNotRunning
		}
		return nil
	})

	logging.Info().
		Str("attempts_topic", cfg.NATS.AttemptsTopic).
		Str("alerts_topic", pipeline.AlertsTopic()).
		Bool("embedded_server", cfg.NATS.EmbeddedServer).
		Msg("NATS pipeline initialized")

	return pipeline, nil
}

func newHTTPServer(cfg *config.Config, handler *api.Handler) *http.Server {
	router := api.NewRouter(handler, api.ChiMiddlewareConfigFromSecurity(cfg.Security))
	return &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
}
