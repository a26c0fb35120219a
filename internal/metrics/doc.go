// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

// Package metrics defines the Prometheus instrumentation for AuthSentry.
//
// Metrics are registered with the default registry via promauto at package
// init and exposed on /metrics by the API router. Callers use the Record*
// helpers rather than touching the vectors directly so label sets stay
// consistent.
//
// All metric names carry the authsentry_ prefix.
package metrics
