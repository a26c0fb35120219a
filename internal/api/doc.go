// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

/*
Package api exposes the detection engine over HTTP using the Chi router.

# Endpoints

All routes live under /api/v1 except the Prometheus exposition at /metrics:

	GET  /health/live                  liveness
	GET  /health/ready                 readiness (503 when a check fails)
	POST /login-attempts/analyze       analyze one attempt
	GET  /users/{userID}/alerts        recent alerts (?limit=, default 100)
	GET  /users/{userID}/attempts      retained attempt history
	GET  /alerts/high-severity         high and critical alerts (?limit=)
	GET  /stats                        alert statistics
	POST /maintenance/cleanup          retention purge (?older_than_days=)
	GET  /detectors                    registered detectors
	PUT  /detectors/{type}/enabled     {"enabled": bool}
	PUT  /detectors/{type}/config      partial JSON configuration

# Response Envelope

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "...", "duration_ms": 1}}
	{"success": false, "error": {"code": "VALIDATION_FAILED", "message": "...", "details": {...}}, "meta": {...}}

Invalid attempts map to 400 VALIDATION_FAILED, unknown detectors to 404 and
failed analyses to 500 ANALYSIS_FAILED. A failed analysis records nothing, so
clients may retry it.
*/
package api
