// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package eventprocessor

import (
	"time"

	"github.com/tomtom215/authsentry/internal/config"
)

// Default stream and subjects.
const (
	DefaultStreamName       = "AUTH_EVENTS"
	DefaultAttemptsTopic    = "auth.login_attempts"
	DefaultAlertsTopic      = "auth.anomaly_alerts"
	DefaultPoisonQueueTopic = "auth.login_attempts.poison"
)

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns defaults for the embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   256 << 20,
		JetStreamMaxStore: 1 << 30,
	}
}

// PublisherConfig holds publisher configuration.
type PublisherConfig struct {
	URL              string
	MaxReconnects    int
	ReconnectWait    time.Duration
	ReconnectBuffer  int
	EnableTrackMsgID bool // nolint:revive // ID is correct per Go conventions
}

// DefaultPublisherConfig returns production defaults for publisher.
func DefaultPublisherConfig(url string) PublisherConfig {
	return PublisherConfig{
		URL:              url,
		MaxReconnects:    -1, // Unlimited
		ReconnectWait:    2 * time.Second,
		ReconnectBuffer:  8 * 1024 * 1024,
		EnableTrackMsgID: true,
	}
}

// SubscriberConfig holds subscriber configuration.
type SubscriberConfig struct {
	URL              string
	DurableName      string
	QueueGroup       string
	SubscribersCount int
	AckWaitTimeout   time.Duration
	MaxDeliver       int
	MaxAckPending    int
	CloseTimeout     time.Duration
	MaxReconnects    int
	ReconnectWait    time.Duration

	// StreamName binds the subscriber to an existing stream. Stream names
	// cannot contain dots, so dotted topics need the stream created up front
	// by StreamInitializer instead of auto-provisioning.
	StreamName string
}

// DefaultSubscriberConfig returns production defaults for subscriber.
func DefaultSubscriberConfig(url string) SubscriberConfig {
	return SubscriberConfig{
		URL:              url,
		DurableName:      "authsentry",
		QueueGroup:       "authsentry",
		SubscribersCount: 4,
		AckWaitTimeout:   30 * time.Second,
		MaxDeliver:       5,
		MaxAckPending:    1000,
		CloseTimeout:     30 * time.Second,
		MaxReconnects:    -1,
		ReconnectWait:    2 * time.Second,
		StreamName:       DefaultStreamName,
	}
}

// StreamConfig defines the auth event stream.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	MaxMsgs         int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream holding attempts, alerts and
// poisoned attempts.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Name:            DefaultStreamName,
		Subjects:        []string{DefaultAttemptsTopic, DefaultAlertsTopic, DefaultPoisonQueueTopic},
		MaxAge:          7 * 24 * time.Hour,
		MaxBytes:        1 << 30,
		MaxMsgs:         -1,
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Settings is the full set of event pipeline settings derived from the
// application configuration.
type Settings struct {
	Server     ServerConfig
	Publisher  PublisherConfig
	Subscriber SubscriberConfig
	Stream     StreamConfig
	Router     RouterConfig
	Breaker    CircuitBreakerConfig

	EmbeddedServer bool
	AttemptsTopic  string
	AlertsTopic    string
}

// SettingsFromConfig maps the nats section of the application configuration.
func SettingsFromConfig(cfg *config.NATSConfig) Settings {
	s := Settings{
		Server:         DefaultServerConfig(),
		Publisher:      DefaultPublisherConfig(cfg.URL),
		Subscriber:     DefaultSubscriberConfig(cfg.URL),
		Stream:         DefaultStreamConfig(),
		Router:         DefaultRouterConfig(),
		Breaker:        DefaultCircuitBreakerConfig("nats-publisher"),
		EmbeddedServer: cfg.EmbeddedServer,
		AttemptsTopic:  cfg.AttemptsTopic,
		AlertsTopic:    cfg.AlertsTopic,
	}

	if cfg.StoreDir != "" {
		s.Server.StoreDir = cfg.StoreDir
	}
	if cfg.MaxMemory > 0 {
		s.Server.JetStreamMaxMem = cfg.MaxMemory
	}
	if cfg.MaxStore > 0 {
		s.Server.JetStreamMaxStore = cfg.MaxStore
	}

	if cfg.DurableName != "" {
		s.Subscriber.DurableName = cfg.DurableName
	}
	if cfg.QueueGroup != "" {
		s.Subscriber.QueueGroup = cfg.QueueGroup
	}
	if cfg.SubscribersCount > 0 {
		s.Subscriber.SubscribersCount = cfg.SubscribersCount
	}

	s.Router.RetryMaxRetries = cfg.RouterRetryCount
	if cfg.RouterRetryInitialInterval > 0 {
		s.Router.RetryInitialInterval = cfg.RouterRetryInitialInterval
	}
	s.Router.DeduplicationEnabled = cfg.RouterDeduplicationEnabled
	if cfg.RouterDeduplicationTTL > 0 {
		s.Router.DeduplicationTTL = cfg.RouterDeduplicationTTL
	}
	if cfg.RouterPoisonQueueEnabled {
		s.Router.PoisonQueueTopic = cfg.RouterPoisonQueueTopic
	} else {
		s.Router.PoisonQueueTopic = ""
	}
	if cfg.RouterCloseTimeout > 0 {
		s.Router.CloseTimeout = cfg.RouterCloseTimeout
	}

	subjects := []string{cfg.AttemptsTopic, cfg.AlertsTopic}
	if s.Router.PoisonQueueTopic != "" {
		subjects = append(subjects, s.Router.PoisonQueueTopic)
	}
	s.Stream.Subjects = subjects

	return s
}
