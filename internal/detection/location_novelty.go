// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
)

// LocationNoveltyDetector flags logins from a location zone the user has not
// logged in from before. Attempts without a location are ignored.
type LocationNoveltyDetector struct {
	detectorState
}

// NewLocationNoveltyDetector creates an enabled location novelty detector.
func NewLocationNoveltyDetector() *LocationNoveltyDetector {
	d := &LocationNoveltyDetector{}
	d.enabled = true
	return d
}

// Type returns AlertTypeNewLocation.
func (d *LocationNoveltyDetector) Type() AlertType {
	return AlertTypeNewLocation
}

// Check compares the attempt's location key with the user's known locations.
func (d *LocationNoveltyDetector) Check(_ context.Context, snap *Snapshot, attempt *LoginAttempt) ([]*AnomalyAlert, error) {
	if attempt.GeoLocation == nil || attempt.LocationKey == "" {
		return nil, nil
	}
	if len(snap.KnownLocations) == 0 {
		return nil, nil
	}
	if _, ok := snap.KnownLocations[attempt.LocationKey]; ok {
		return nil, nil
	}

	alert, err := newAlert(attempt, AlertTypeNewLocation, SeverityMedium, NewLocationDetails{
		Location:            *attempt.GeoLocation,
		KnownLocationsCount: len(snap.KnownLocations) + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build new location alert: %w", err)
	}
	return []*AnomalyAlert{alert}, nil
}

// Configure accepts an empty JSON object. The detector has no tunables.
func (d *LocationNoveltyDetector) Configure(config json.RawMessage) error {
	var cfg struct{}
	return decodeConfig(config, &cfg)
}

// ConfigJSON returns an empty JSON object.
func (d *LocationNoveltyDetector) ConfigJSON() (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
