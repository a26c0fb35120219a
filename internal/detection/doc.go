// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package detection analyzes authentication attempts for anomalies such as
// new devices, new locations, impossible travel, automated attacks and
// suspicious login times.
//
// Detection Architecture:
//
//	LoginAttempt -> Engine -> Detectors -> AnomalyAlert -> Notifiers
//	                  |                        |
//	                  v                        v
//	           AttemptStore              AlertStore
//
// Each attempt is evaluated against a snapshot of the user's history taken
// under a per-user lock. The attempt and its alerts are committed only when
// every enabled detector succeeds, so a failed analysis can be retried
// without double counting.
//
// Built-in detectors, in evaluation order:
//   - new_device: unseen device fingerprint (medium)
//   - new_location: unseen location zone (medium)
//   - impossible_travel: implied speed above the configured maximum (high)
//   - automated_attack: attempt volume (high) or user agent churn (medium)
//   - suspicious_timing: night login at an unusual hour (low)
//
// The first device and location a user is seen with form the baseline and
// never alert.
//
// Attempts arrive through Engine.AnalyzeLoginAttempt, the HTTP API or the
// WatermillHandler. Alerts leave through Notifier implementations: the
// WebhookNotifier and the PublisherNotifier.
package detection
