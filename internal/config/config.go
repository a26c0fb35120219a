// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package config

import "time"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
	Detection DetectionConfig `koanf:"detection"`
	Retention RetentionConfig `koanf:"retention"`
	GeoIP     GeoIPConfig     `koanf:"geoip"`     // Optional: MaxMind city database for attempts without a location
	NATS      NATSConfig      `koanf:"nats"`      // Optional: login attempt ingestion and alert fan-out over JetStream
	Webhook   WebhookConfig   `koanf:"webhook"`   // Optional: HTTP alert sink
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig controls CORS and request rate limiting of the HTTP API.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig configures the global zerolog logger.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json (production) or console (development).
	Format string `koanf:"format"`

	// Caller includes file:line in every entry.
	Caller bool `koanf:"caller"`
}

// DetectionConfig holds the anomaly engine thresholds. The defaults are the
// values the engine has always shipped with; they have no stated derivation
// and are kept overridable rather than tuned.
type DetectionConfig struct {
	// Enabled turns analysis on. A disabled engine ignores incoming attempts.
	Enabled bool `koanf:"enabled"`

	// DisabledDetectors lists detector types switched off at startup.
	DisabledDetectors []string `koanf:"disabled_detectors"`

	// MaxAttemptsPerUser caps each user's attempt history (FIFO eviction).
	MaxAttemptsPerUser int `koanf:"max_attempts_per_user"`

	// LocationPrecision is the number of decimals coordinates are rounded to
	// when deriving a location zone.
	LocationPrecision int `koanf:"location_precision"`

	TravelMaxSpeedKmh  float64       `koanf:"travel_max_speed_kmh"`
	TravelMaxTimeGap   time.Duration `koanf:"travel_max_time_gap"`
	TravelHistoryLimit int           `koanf:"travel_history_limit"`
	TravelMinHours     float64       `koanf:"travel_min_hours"`

	AttackWindow           time.Duration `koanf:"attack_window"`
	AttackMaxAttempts      int           `koanf:"attack_max_attempts"`
	AttackUAMinAttempts    int           `koanf:"attack_ua_min_attempts"`
	AttackUADiversityRatio float64       `koanf:"attack_ua_diversity_ratio"`

	TimingMinSuccesses   int     `koanf:"timing_min_successes"`
	TimingUsualHourRatio float64 `koanf:"timing_usual_hour_ratio"`
	TimingNightStartHour int     `koanf:"timing_night_start_hour"`
	TimingNightEndHour   int     `koanf:"timing_night_end_hour"`
	TimingTimezone       string  `koanf:"timing_timezone"`

	// NotifyTimeout bounds each asynchronous notifier delivery.
	NotifyTimeout time.Duration `koanf:"notify_timeout"`
}

// RetentionConfig controls age-based cleanup of attempts and alerts.
type RetentionConfig struct {
	Days            int           `koanf:"days"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// GeoIPConfig configures the MaxMind city database resolver.
type GeoIPConfig struct {
	Enabled    bool          `koanf:"enabled"`
	CityDBPath string        `koanf:"city_db_path"`
	CacheSize  int           `koanf:"cache_size"`
	CacheTTL   time.Duration `koanf:"cache_ttl"`
}

// NATSConfig configures Watermill over NATS JetStream.
type NATSConfig struct {
	// Enabled turns on the login attempt consumer and the alert publisher.
	Enabled bool `koanf:"enabled"`

	// URL of the NATS server. Ignored for the connection target when the
	// embedded server is used.
	URL string `koanf:"url"`

	// EmbeddedServer starts an in-process NATS server with JetStream.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	AttemptsTopic string `koanf:"attempts_topic"`
	AlertsTopic   string `koanf:"alerts_topic"`

	// PublishAlerts registers the NATS alert notifier.
	PublishAlerts bool `koanf:"publish_alerts"`

	SubscribersCount int    `koanf:"subscribers_count"`
	DurableName      string `koanf:"durable_name"`
	QueueGroup       string `koanf:"queue_group"`

	RouterRetryCount           int           `koanf:"router_retry_count"`
	RouterRetryInitialInterval time.Duration `koanf:"router_retry_initial_interval"`
	RouterDeduplicationEnabled bool          `koanf:"router_deduplication_enabled"`
	RouterDeduplicationTTL     time.Duration `koanf:"router_deduplication_ttl"`
	RouterPoisonQueueEnabled   bool          `koanf:"router_poison_queue_enabled"`
	RouterPoisonQueueTopic     string        `koanf:"router_poison_queue_topic"`
	RouterCloseTimeout         time.Duration `koanf:"router_close_timeout"`
}

// WebhookConfig configures the HTTP alert sink.
type WebhookConfig struct {
	Enabled bool              `koanf:"enabled"`
	URL     string            `koanf:"url"`
	Headers map[string]string `koanf:"headers"`
	Timeout time.Duration     `koanf:"timeout"`

	// RateLimit is the sustained deliveries per second; Burst allows short spikes.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`

	// BreakerMaxFailures consecutive failures open the circuit for BreakerTimeout.
	BreakerMaxFailures uint32        `koanf:"breaker_max_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// Addr returns the HTTP listen address.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}
