// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import "github.com/tomtom215/authsentry/internal/detection"

// SetDetectorEnabledRequest is the body of PUT /detectors/{type}/enabled.
type SetDetectorEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// AnalyzeResponse is returned by POST /login-attempts/analyze.
// Analyzed is false when the engine is disabled and ignored the attempt.
type AnalyzeResponse struct {
	Alerts   []detection.AnomalyAlert `json:"alerts"`
	Analyzed bool                     `json:"analyzed"`
}

// AlertsResponse wraps alert listings.
type AlertsResponse struct {
	Alerts []detection.AnomalyAlert `json:"alerts"`
	Count  int                      `json:"count"`
}

// AttemptsResponse wraps a user's attempt history.
type AttemptsResponse struct {
	UserID   string                   `json:"user_id"`
	Attempts []detection.LoginAttempt `json:"attempts"`
	Count    int                      `json:"count"`
}

// DetectorsResponse wraps the detector listing.
type DetectorsResponse struct {
	Detectors []detection.DetectorInfo `json:"detectors"`
}
