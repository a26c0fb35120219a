// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis Metrics
	AttemptsAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_attempts_analyzed_total",
			Help: "Total number of login attempts analyzed",
		},
		[]string{"result"}, // "success", "failure"
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "authsentry_analysis_duration_seconds",
			Help:    "Time spent analyzing a single login attempt",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		},
	)

	AnalysisErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_analysis_errors_total",
			Help: "Total number of failed analyses",
		},
		[]string{"reason"}, // "invalid_attempt", "detector_failed"
	)

	DetectorErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_detector_errors_total",
			Help: "Total number of detector errors and panics",
		},
		[]string{"detector"},
	)

	AlertsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_alerts_emitted_total",
			Help: "Total number of anomaly alerts emitted",
		},
		[]string{"type", "severity"},
	)

	TrackedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "authsentry_tracked_users",
			Help: "Number of users with attempt history in memory",
		},
	)

	// Retention Metrics
	RetentionPurged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_retention_purged_total",
			Help: "Total number of records removed by retention cleanup",
		},
		[]string{"kind"}, // "attempts", "alerts", "users"
	)

	RetentionRuns = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authsentry_retention_runs_total",
			Help: "Total number of retention cleanup runs",
		},
	)

	// Notification Metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_notifications_total",
			Help: "Total number of alert notifications by notifier and outcome",
		},
		[]string{"notifier", "result"}, // result: "success", "error", "rate_limited", "circuit_open"
	)

	// GeoIP Metrics
	GeoLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_geoip_lookups_total",
			Help: "Total number of IP geolocation lookups",
		},
		[]string{"result"}, // "hit", "miss", "not_found", "error"
	)

	// Messaging Metrics
	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_messages_consumed_total",
			Help: "Total number of login attempt messages consumed",
		},
		[]string{"result"}, // "processed", "malformed", "failed", "duplicate"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authsentry_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "authsentry_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAnalysis records one completed analysis.
func RecordAnalysis(success bool, duration time.Duration) {
	result := "failure"
	if success {
		result = "success"
	}
	AttemptsAnalyzed.WithLabelValues(result).Inc()
	AnalysisDuration.Observe(duration.Seconds())
}

// RecordAnalysisError records a failed analysis.
func RecordAnalysisError(reason string) {
	AnalysisErrors.WithLabelValues(reason).Inc()
}

// RecordDetectorError records a detector error or recovered panic.
func RecordDetectorError(detector string) {
	DetectorErrors.WithLabelValues(detector).Inc()
}

// RecordAlert records one emitted alert.
func RecordAlert(alertType, severity string) {
	AlertsEmitted.WithLabelValues(alertType, severity).Inc()
}

// SetTrackedUsers updates the tracked users gauge.
func SetTrackedUsers(n int) {
	TrackedUsers.Set(float64(n))
}

// RecordRetention records the outcome of one cleanup run.
func RecordRetention(attempts, alerts, users int) {
	RetentionRuns.Inc()
	RetentionPurged.WithLabelValues("attempts").Add(float64(attempts))
	RetentionPurged.WithLabelValues("alerts").Add(float64(alerts))
	RetentionPurged.WithLabelValues("users").Add(float64(users))
}

// RecordNotification records one notifier delivery attempt.
func RecordNotification(notifier, result string) {
	NotificationsSent.WithLabelValues(notifier, result).Inc()
}

// RecordGeoLookup records one geolocation lookup result.
func RecordGeoLookup(result string) {
	GeoLookups.WithLabelValues(result).Inc()
}

// RecordMessageConsumed records the outcome of one consumed message.
func RecordMessageConsumed(result string) {
	MessagesConsumed.WithLabelValues(result).Inc()
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
