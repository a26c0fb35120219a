// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package middleware provides infrastructure HTTP middleware for the API.

Key Components:

  - RequestID: request and correlation IDs in the response header and logging context
  - AccessLog: one zerolog line per request
  - PrometheusMetrics: request count and latency per chi route pattern

All three are plain func(http.Handler) http.Handler and are installed with
chi's r.Use:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

Metrics are labelled with the route pattern (for example
/api/v1/users/{userID}/alerts) rather than the raw path, so user IDs never
become label values.
*/
package middleware
