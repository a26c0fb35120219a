// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/authsentry/config.yaml",
	"/etc/authsentry/config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			CORSOrigins:       []string{"*"},
			RateLimitReqs:     600,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Detection: DetectionConfig{
			Enabled:                true,
			DisabledDetectors:      []string{},
			MaxAttemptsPerUser:     100,
			LocationPrecision:      1,
			TravelMaxSpeedKmh:      1000,
			TravelMaxTimeGap:       24 * time.Hour,
			TravelHistoryLimit:     10,
			TravelMinHours:         1,
			AttackWindow:           time.Hour,
			AttackMaxAttempts:      20,
			AttackUAMinAttempts:    5,
			AttackUADiversityRatio: 0.8,
			TimingMinSuccesses:     5,
			TimingUsualHourRatio:   0.1,
			TimingNightStartHour:   2,
			TimingNightEndHour:     5,
			TimingTimezone:         "UTC",
			NotifyTimeout:          10 * time.Second,
		},
		Retention: RetentionConfig{
			Days:            30,
			CleanupInterval: 24 * time.Hour,
		},
		GeoIP: GeoIPConfig{
			Enabled:    false,
			CityDBPath: "/data/GeoLite2-City.mmdb",
			CacheSize:  10000,
			CacheTTL:   time.Hour,
		},
		NATS: NATSConfig{
			Enabled:                    false,
			URL:                        "nats://127.0.0.1:4222",
			EmbeddedServer:             false,
			StoreDir:                   "/data/nats/jetstream",
			MaxMemory:                  256 << 20,
			MaxStore:                   1 << 30,
			AttemptsTopic:              "auth.login_attempts",
			AlertsTopic:                "auth.anomaly_alerts",
			PublishAlerts:              true,
			SubscribersCount:           4,
			DurableName:                "authsentry",
			QueueGroup:                 "authsentry",
			RouterRetryCount:           3,
			RouterRetryInitialInterval: 100 * time.Millisecond,
			RouterDeduplicationEnabled: true,
			RouterDeduplicationTTL:     5 * time.Minute,
			RouterPoisonQueueEnabled:   true,
			RouterPoisonQueueTopic:     "auth.login_attempts.poison",
			RouterCloseTimeout:         30 * time.Second,
		},
		Webhook: WebhookConfig{
			Enabled:            false,
			Headers:            map[string]string{},
			Timeout:            10 * time.Second,
			RateLimit:          5,
			Burst:              10,
			BreakerMaxFailures: 5,
			BreakerTimeout:     time.Minute,
		},
	}
}

// Load is an alias for LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf loads configuration in layers, each overriding the previous:
// struct defaults, an optional YAML file, then mapped environment variables.
// The result is validated before it is returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths accept comma-separated strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"detection.disabled_detectors",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to config paths.
// Unmapped variables are ignored so the process environment cannot leak
// into the config tree.
var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_idle_timeout":     "server.idle_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"detection_enabled":                   "detection.enabled",
	"detection_disabled_detectors":        "detection.disabled_detectors",
	"detection_max_attempts_per_user":     "detection.max_attempts_per_user",
	"detection_location_precision":        "detection.location_precision",
	"detection_travel_max_speed_kmh":      "detection.travel_max_speed_kmh",
	"detection_travel_max_time_gap":       "detection.travel_max_time_gap",
	"detection_travel_history_limit":      "detection.travel_history_limit",
	"detection_travel_min_hours":          "detection.travel_min_hours",
	"detection_attack_window":             "detection.attack_window",
	"detection_attack_max_attempts":       "detection.attack_max_attempts",
	"detection_attack_ua_min_attempts":    "detection.attack_ua_min_attempts",
	"detection_attack_ua_diversity_ratio": "detection.attack_ua_diversity_ratio",
	"detection_timing_min_successes":      "detection.timing_min_successes",
	"detection_timing_usual_hour_ratio":   "detection.timing_usual_hour_ratio",
	"detection_timing_night_start_hour":   "detection.timing_night_start_hour",
	"detection_timing_night_end_hour":     "detection.timing_night_end_hour",
	"detection_timing_timezone":           "detection.timing_timezone",
	"detection_notify_timeout":            "detection.notify_timeout",

	"retention_days":             "retention.days",
	"retention_cleanup_interval": "retention.cleanup_interval",

	"geoip_enabled":      "geoip.enabled",
	"geoip_city_db_path": "geoip.city_db_path",
	"geoip_cache_size":   "geoip.cache_size",
	"geoip_cache_ttl":    "geoip.cache_ttl",

	"nats_enabled":               "nats.enabled",
	"nats_url":                   "nats.url",
	"nats_embedded":              "nats.embedded_server",
	"nats_store_dir":             "nats.store_dir",
	"nats_max_memory":            "nats.max_memory",
	"nats_max_store":             "nats.max_store",
	"nats_attempts_topic":        "nats.attempts_topic",
	"nats_alerts_topic":          "nats.alerts_topic",
	"nats_publish_alerts":        "nats.publish_alerts",
	"nats_subscribers":           "nats.subscribers_count",
	"nats_durable_name":          "nats.durable_name",
	"nats_queue_group":           "nats.queue_group",
	"nats_router_retry_count":    "nats.router_retry_count",
	"nats_router_retry_interval": "nats.router_retry_initial_interval",
	"nats_router_dedup_enabled":  "nats.router_deduplication_enabled",
	"nats_router_dedup_ttl":      "nats.router_deduplication_ttl",
	"nats_router_poison_enabled": "nats.router_poison_queue_enabled",
	"nats_router_poison_topic":   "nats.router_poison_queue_topic",
	"nats_router_close_timeout":  "nats.router_close_timeout",

	"webhook_enabled":              "webhook.enabled",
	"webhook_url":                  "webhook.url",
	"webhook_timeout":              "webhook.timeout",
	"webhook_rate_limit":           "webhook.rate_limit",
	"webhook_burst":                "webhook.burst",
	"webhook_breaker_max_failures": "webhook.breaker_max_failures",
	"webhook_breaker_timeout":      "webhook.breaker_timeout",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
