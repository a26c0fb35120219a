// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/authsentry/internal/logging"
)

// readinessTimeout bounds the whole set of readiness checks.
const readinessTimeout = 2 * time.Second

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
//
// @Summary Liveness probe
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse "Service is alive"
// @Router /health/live [get]
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 OK only when every registered dependency check passes.
//
// @Summary Readiness probe
// @Tags Health
// @Produce json
// @Success 200 {object} APIResponse "Service is ready"
// @Failure 503 {object} APIResponse "Service is not ready"
// @Router /health/ready [get]
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := map[string]string{}
	ready := true
	for _, c := range h.readinessChecks() {
		if err := c.check(ctx); err != nil {
			ready = false
			checks[c.name] = err.Error()
			logging.Ctx(r.Context()).Warn().Err(err).Str("check", c.name).Msg("readiness check failed")
			continue
		}
		checks[c.name] = "ok"
	}

	data := map[string]interface{}{
		"ready":          ready,
		"engine_enabled": h.engine.Enabled(),
		"checks":         checks,
		"uptime":         time.Since(h.startTime).Seconds(),
	}

	if !ready {
		NewResponseWriter(w, r).ServiceUnavailable("service is not ready", data)
		return
	}
	WriteSuccess(w, r, data)
}
