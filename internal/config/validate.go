// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
	_ "time/tzdata" // timing_timezone must resolve on hosts without zoneinfo

	"github.com/tomtom215/authsentry/internal/logging"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validateLogging,
		c.validateDetection,
		c.validateRetention,
		c.validateGeoIP,
		c.validateNATS,
		c.validateWebhook,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	switch c.Server.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("ENVIRONMENT must be development, staging or production, got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	if c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

func (c *Config) validateDetection() error {
	d := c.Detection
	var errs []error

	if d.MaxAttemptsPerUser < 1 {
		errs = append(errs, fmt.Errorf("detection.max_attempts_per_user must be positive"))
	}
	if d.LocationPrecision < 0 || d.LocationPrecision > 6 {
		errs = append(errs, fmt.Errorf("detection.location_precision must be between 0 and 6"))
	}
	if d.TravelMaxSpeedKmh <= 0 {
		errs = append(errs, fmt.Errorf("detection.travel_max_speed_kmh must be positive"))
	}
	if d.TravelMaxTimeGap <= 0 {
		errs = append(errs, fmt.Errorf("detection.travel_max_time_gap must be positive"))
	}
	if d.TravelHistoryLimit < 1 {
		errs = append(errs, fmt.Errorf("detection.travel_history_limit must be positive"))
	}
	if d.TravelMinHours <= 0 {
		errs = append(errs, fmt.Errorf("detection.travel_min_hours must be positive"))
	}
	if d.AttackWindow <= 0 {
		errs = append(errs, fmt.Errorf("detection.attack_window must be positive"))
	}
	if d.AttackMaxAttempts < 1 || d.AttackUAMinAttempts < 1 {
		errs = append(errs, fmt.Errorf("detection attack attempt thresholds must be positive"))
	}
	if d.AttackUADiversityRatio <= 0 || d.AttackUADiversityRatio > 1 {
		errs = append(errs, fmt.Errorf("detection.attack_ua_diversity_ratio must be in (0, 1]"))
	}
	if d.TimingMinSuccesses < 1 {
		errs = append(errs, fmt.Errorf("detection.timing_min_successes must be positive"))
	}
	if d.TimingUsualHourRatio <= 0 || d.TimingUsualHourRatio >= 1 {
		errs = append(errs, fmt.Errorf("detection.timing_usual_hour_ratio must be in (0, 1)"))
	}
	if !validHour(d.TimingNightStartHour) || !validHour(d.TimingNightEndHour) || d.TimingNightStartHour > d.TimingNightEndHour {
		errs = append(errs, fmt.Errorf("detection night window must satisfy 0 <= start <= end <= 23"))
	}
	if _, err := time.LoadLocation(d.TimingTimezone); err != nil {
		errs = append(errs, fmt.Errorf("detection.timing_timezone: %w", err))
	}
	if d.NotifyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("detection.notify_timeout must be positive"))
	}
	return errors.Join(errs...)
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}

func (c *Config) validateRetention() error {
	if c.Retention.Days < 1 {
		return fmt.Errorf("RETENTION_DAYS must be at least 1")
	}
	if c.Retention.CleanupInterval < time.Minute {
		return fmt.Errorf("RETENTION_CLEANUP_INTERVAL must be at least 1m")
	}
	return nil
}

func (c *Config) validateGeoIP() error {
	if !c.GeoIP.Enabled {
		return nil
	}
	if c.GeoIP.CityDBPath == "" {
		return fmt.Errorf("GEOIP_CITY_DB_PATH is required when GEOIP_ENABLED=true")
	}
	if c.GeoIP.CacheSize < 0 {
		return fmt.Errorf("GEOIP_CACHE_SIZE must not be negative")
	}
	return nil
}

func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}
	if !c.NATS.EmbeddedServer && c.NATS.URL == "" {
		return fmt.Errorf("NATS_URL is required when NATS_ENABLED=true without the embedded server")
	}
	if c.NATS.AttemptsTopic == "" || c.NATS.AlertsTopic == "" {
		return fmt.Errorf("nats attempts and alerts topics must be set")
	}
	if c.NATS.AttemptsTopic == c.NATS.AlertsTopic {
		return fmt.Errorf("nats attempts and alerts topics must differ")
	}
	if c.NATS.SubscribersCount < 1 {
		return fmt.Errorf("NATS_SUBSCRIBERS must be at least 1")
	}
	if c.NATS.RouterRetryCount < 0 {
		return fmt.Errorf("NATS_ROUTER_RETRY_COUNT must not be negative")
	}
	if c.NATS.RouterPoisonQueueEnabled && c.NATS.RouterPoisonQueueTopic == "" {
		return fmt.Errorf("NATS_ROUTER_POISON_TOPIC is required when the poison queue is enabled")
	}
	return nil
}

func (c *Config) validateWebhook() error {
	if !c.Webhook.Enabled {
		return nil
	}
	u, err := url.Parse(c.Webhook.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("WEBHOOK_URL must be an absolute http(s) URL when WEBHOOK_ENABLED=true")
	}
	if c.Webhook.RateLimit <= 0 || c.Webhook.Burst < 1 {
		return fmt.Errorf("webhook rate limit and burst must be positive")
	}
	if c.Webhook.Timeout <= 0 {
		return fmt.Errorf("WEBHOOK_TIMEOUT must be positive")
	}
	return nil
}
