// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/detection"
)

// Engine is the subset of *detection.Engine the API exposes.
type Engine interface {
	Enabled() bool
	AnalyzeLoginAttempt(ctx context.Context, in detection.LoginAttemptInput) ([]detection.AnomalyAlert, error)
	RecentAlerts(userID string, limit int) []detection.AnomalyAlert
	HighSeverityAlerts(limit int) []detection.AnomalyAlert
	AnomalyStats() detection.Stats
	UserHistory(userID string) []detection.LoginAttempt
	Cleanup(olderThanDays int) detection.CleanupResult
	ListDetectors() []detection.DetectorInfo
	SetDetectorEnabled(alertType detection.AlertType, enabled bool) error
	ConfigureDetector(alertType detection.AlertType, config json.RawMessage) error
}

var _ Engine = (*detection.Engine)(nil)

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type namedCheck struct {
	name  string
	check ReadinessCheck
}

// Handler handles all HTTP API requests.
type Handler struct {
	engine    Engine
	startTime time.Time

	checksMu sync.RWMutex
	checks   []namedCheck
}

// NewHandler creates a new API handler over engine.
func NewHandler(engine Engine) *Handler {
	return &Handler{
		engine:    engine,
		startTime: time.Now(),
	}
}

// AddReadinessCheck registers a dependency consulted by /health/ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checksMu.Lock()
	defer h.checksMu.Unlock()
	h.checks = append(h.checks, namedCheck{name: name, check: check})
}

func (h *Handler) readinessChecks() []namedCheck {
	h.checksMu.RLock()
	defer h.checksMu.RUnlock()
	out := make([]namedCheck, len(h.checks))
	copy(out, h.checks)
	return out
}
