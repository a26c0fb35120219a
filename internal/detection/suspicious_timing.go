// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// TimeCategoryNight is the time category of night-time timing alerts.
const TimeCategoryNight = "night"

// SuspiciousTimingDetector flags night-time logins at an hour the user does
// not usually log in at. It stays silent until the user has enough
// successful logins to profile.
type SuspiciousTimingDetector struct {
	detectorState
	config   SuspiciousTimingConfig
	location *time.Location
}

// NewSuspiciousTimingDetector creates an enabled suspicious timing detector.
// An unknown timezone falls back to UTC.
func NewSuspiciousTimingDetector(config SuspiciousTimingConfig) *SuspiciousTimingDetector {
	loc, err := config.validate()
	if err != nil {
		loc = time.UTC
	}
	d := &SuspiciousTimingDetector{config: config, location: loc}
	d.enabled = true
	return d
}

// Type returns AlertTypeSuspiciousTiming.
func (d *SuspiciousTimingDetector) Type() AlertType {
	return AlertTypeSuspiciousTiming
}

// Check builds an hour-of-day histogram of the user's successful logins and
// compares the incoming attempt's hour with it.
func (d *SuspiciousTimingDetector) Check(_ context.Context, snap *Snapshot, attempt *LoginAttempt) ([]*AnomalyAlert, error) {
	d.mu.RLock()
	config, loc := d.config, d.location
	d.mu.RUnlock()

	successful := snap.Successful()
	if len(successful) < config.MinSuccessfulAttempts {
		return nil, nil
	}

	var histogram [24]int
	for i := range successful {
		histogram[successful[i].Timestamp.In(loc).Hour()]++
	}

	// An hour is usual when its count strictly exceeds ratio*total.
	const floatEpsilon = 1e-9
	threshold := config.UsualHourRatio*float64(len(successful)) + floatEpsilon
	usual := make([]int, 0, 24)
	var isUsual [24]bool
	for hour, count := range histogram {
		if float64(count) > threshold {
			usual = append(usual, hour)
			isUsual[hour] = true
		}
	}

	hour := attempt.Timestamp.In(loc).Hour()
	if hour < config.NightStartHour || hour > config.NightEndHour || isUsual[hour] {
		return nil, nil
	}

	alert, err := newAlert(attempt, AlertTypeSuspiciousTiming, SeverityLow, SuspiciousTimingDetails{
		UnusualHour:  hour,
		UsualHours:   usual,
		TimeCategory: TimeCategoryNight,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build suspicious timing alert: %w", err)
	}
	return []*AnomalyAlert{alert}, nil
}

// Configure updates the detector configuration.
func (d *SuspiciousTimingDetector) Configure(config json.RawMessage) error {
	newConfig := d.Config()
	if err := decodeConfig(config, &newConfig); err != nil {
		return err
	}
	loc, err := newConfig.validate()
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.config = newConfig
	d.location = loc
	d.mu.Unlock()
	return nil
}

// ConfigJSON returns the current configuration.
func (d *SuspiciousTimingDetector) ConfigJSON() (json.RawMessage, error) {
	return json.Marshal(d.Config())
}

// Config returns the current configuration.
func (d *SuspiciousTimingDetector) Config() SuspiciousTimingConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
