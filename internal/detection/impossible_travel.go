// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// ImpossibleTravelDetector flags logins whose location is too far from the
// user's previous successful login for the time elapsed between them.
type ImpossibleTravelDetector struct {
	detectorState
	config ImpossibleTravelConfig
}

// NewImpossibleTravelDetector creates an enabled impossible travel detector.
func NewImpossibleTravelDetector(config ImpossibleTravelConfig) *ImpossibleTravelDetector {
	d := &ImpossibleTravelDetector{config: config}
	d.enabled = true
	return d
}

// Type returns AlertTypeImpossibleTravel.
func (d *ImpossibleTravelDetector) Type() AlertType {
	return AlertTypeImpossibleTravel
}

// Check compares the attempt with the most recent successful located login.
func (d *ImpossibleTravelDetector) Check(_ context.Context, snap *Snapshot, attempt *LoginAttempt) ([]*AnomalyAlert, error) {
	config := d.Config()

	if attempt.GeoLocation == nil {
		return nil, nil
	}
	prior := snap.SuccessfulWithLocation(config.HistoryLimit)
	if len(prior) == 0 {
		return nil, nil
	}
	last := prior[0]

	timeDelta := attempt.Timestamp.Sub(last.Timestamp)
	if timeDelta < 0 {
		timeDelta = -timeDelta
	}
	maxGap := time.Duration(config.MaxTimeGapHours * float64(time.Hour))
	if timeDelta > maxGap {
		return nil, nil
	}

	from, to := last.GeoLocation, attempt.GeoLocation
	distanceKm := haversineDistance(from.Latitude, from.Longitude, to.Latitude, to.Longitude)

	// Floor the elapsed time so back-to-back logins do not divide by zero.
	hours := math.Max(timeDelta.Hours(), config.MinTimeHours)
	speedKmH := distanceKm / hours
	if speedKmH <= config.MaxSpeedKmH {
		return nil, nil
	}

	alert, err := newAlert(attempt, AlertTypeImpossibleTravel, SeverityHigh, ImpossibleTravelDetails{
		Distance:     roundTo2Decimals(distanceKm),
		TimeDiff:     roundTo2Decimals(timeDelta.Hours()),
		Speed:        roundTo2Decimals(speedKmH),
		FromLocation: *from,
		ToLocation:   *to,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build impossible travel alert: %w", err)
	}
	return []*AnomalyAlert{alert}, nil
}

// Configure updates the detector configuration.
func (d *ImpossibleTravelDetector) Configure(config json.RawMessage) error {
	newConfig := d.Config()
	if err := decodeConfig(config, &newConfig); err != nil {
		return err
	}
	if err := newConfig.validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.config = newConfig
	d.mu.Unlock()
	return nil
}

// ConfigJSON returns the current configuration.
func (d *ImpossibleTravelDetector) ConfigJSON() (json.RawMessage, error) {
	return json.Marshal(d.Config())
}

// Config returns the current configuration.
func (d *ImpossibleTravelDetector) Config() ImpossibleTravelConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// haversineDistance returns the great-circle distance in km between two
// points given in degrees.
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371.0

	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}
