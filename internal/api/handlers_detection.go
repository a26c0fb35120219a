// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/authsentry/internal/detection"
	"github.com/tomtom215/authsentry/internal/validation"
)

// AnalyzeLoginAttempt runs every enabled detector against one attempt.
//
// @Summary Analyze a login attempt
// @Tags Detection
// @Accept json
// @Produce json
// @Param attempt body detection.LoginAttemptInput true "Login attempt"
// @Success 200 {object} APIResponse{data=AnalyzeResponse}
// @Failure 400 {object} APIResponse "Invalid attempt"
// @Failure 500 {object} APIResponse "Analysis failed, nothing was recorded"
// @Router /login-attempts/analyze [post]
func (h *Handler) AnalyzeLoginAttempt(w http.ResponseWriter, r *http.Request) {
	var in detection.LoginAttemptInput
	if err := decodeJSONBody(w, r, &in); err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}

	analyzed := h.engine.Enabled()
	alerts, err := h.engine.AnalyzeLoginAttempt(r.Context(), in)
	if err != nil {
		writeEngineError(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []detection.AnomalyAlert{}
	}

	WriteSuccess(w, r, AnalyzeResponse{Alerts: alerts, Analyzed: analyzed})
}

// UserAlerts returns a user's most recent alerts.
//
// @Summary Recent alerts for a user
// @Tags Detection
// @Produce json
// @Param userID path string true "User ID"
// @Param limit query int false "Maximum alerts (1-1000, default 100)"
// @Success 200 {object} APIResponse{data=AlertsResponse}
// @Router /users/{userID}/alerts [get]
func (h *Handler) UserAlerts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, err := pathParam(r, "userID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	alerts := h.engine.RecentAlerts(userID, limit)
	rw.Success(AlertsResponse{Alerts: nonNilAlerts(alerts), Count: len(alerts)})
}

// UserAttempts returns a user's retained attempt history, oldest first.
func (h *Handler) UserAttempts(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	userID, err := pathParam(r, "userID")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	attempts := h.engine.UserHistory(userID)
	if attempts == nil {
		attempts = []detection.LoginAttempt{}
	}
	rw.Success(AttemptsResponse{UserID: userID, Attempts: attempts, Count: len(attempts)})
}

// HighSeverityAlerts returns high and critical alerts across all users.
//
// @Summary High severity alerts
// @Tags Detection
// @Produce json
// @Param limit query int false "Maximum alerts (1-1000, default 100)"
// @Success 200 {object} APIResponse{data=AlertsResponse}
// @Router /alerts/high-severity [get]
func (h *Handler) HighSeverityAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}

	alerts := h.engine.HighSeverityAlerts(limit)
	WriteSuccess(w, r, AlertsResponse{Alerts: nonNilAlerts(alerts), Count: len(alerts)})
}

// Stats returns alert counts by type and severity plus the top users.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, h.engine.AnomalyStats())
}

// Cleanup purges attempts and alerts older than ?older_than_days=. Without
// the parameter the configured retention applies.
//
// @Summary Run retention cleanup
// @Tags Maintenance
// @Produce json
// @Param older_than_days query int false "Age cutoff in days"
// @Success 200 {object} APIResponse{data=detection.CleanupResult}
// @Router /maintenance/cleanup [post]
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	days := 0
	if raw := r.URL.Query().Get("older_than_days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			NewResponseWriter(w, r).BadRequest("older_than_days must be a non-negative integer")
			return
		}
		days = parsed
	}

	WriteSuccess(w, r, h.engine.Cleanup(days))
}

// ListDetectors describes every registered detector with its configuration.
func (h *Handler) ListDetectors(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, DetectorsResponse{Detectors: h.engine.ListDetectors()})
}

// SetDetectorEnabled switches a detector on or off.
//
// @Summary Enable or disable a detector
// @Tags Detectors
// @Accept json
// @Produce json
// @Param type path string true "Detector type"
// @Param body body SetDetectorEnabledRequest true "Enabled flag"
// @Success 200 {object} APIResponse{data=detection.DetectorInfo}
// @Failure 404 {object} APIResponse "Unknown detector"
// @Router /detectors/{type}/enabled [put]
func (h *Handler) SetDetectorEnabled(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	alertType, err := pathParam(r, "type")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	var req SetDetectorEnabledRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		rw.BadRequest(err.Error())
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		rw.ValidationError("request failed validation", verr.Details())
		return
	}

	if err := h.engine.SetDetectorEnabled(detection.AlertType(alertType), *req.Enabled); err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.writeDetector(rw, detection.AlertType(alertType))
}

// ConfigureDetector merges a JSON configuration over a detector's current
// settings and returns the result.
//
// @Summary Configure a detector
// @Tags Detectors
// @Accept json
// @Produce json
// @Param type path string true "Detector type"
// @Success 200 {object} APIResponse{data=detection.DetectorInfo}
// @Failure 400 {object} APIResponse "Invalid configuration"
// @Failure 404 {object} APIResponse "Unknown detector"
// @Router /detectors/{type}/config [put]
func (h *Handler) ConfigureDetector(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	alertType, err := pathParam(r, "type")
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	raw, err := readRawBody(w, r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	if err := h.engine.ConfigureDetector(detection.AlertType(alertType), raw); err != nil {
		writeEngineError(w, r, err)
		return
	}
	h.writeDetector(rw, detection.AlertType(alertType))
}

func (h *Handler) writeDetector(rw *ResponseWriter, alertType detection.AlertType) {
	for _, info := range h.engine.ListDetectors() {
		if info.Type == alertType {
			rw.Success(info)
			return
		}
	}
	rw.NotFound("detector not found: " + string(alertType))
}

func nonNilAlerts(alerts []detection.AnomalyAlert) []detection.AnomalyAlert {
	if alerts == nil {
		return []detection.AnomalyAlert{}
	}
	return alerts
}
