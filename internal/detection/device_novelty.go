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

// DeviceNoveltyDetector flags logins from a device fingerprint the user has
// not used before. The first device a user is seen with is the baseline and
// never alerts.
type DeviceNoveltyDetector struct {
	detectorState
}

// NewDeviceNoveltyDetector creates an enabled device novelty detector.
func NewDeviceNoveltyDetector() *DeviceNoveltyDetector {
	d := &DeviceNoveltyDetector{}
	d.enabled = true
	return d
}

// Type returns AlertTypeNewDevice.
func (d *DeviceNoveltyDetector) Type() AlertType {
	return AlertTypeNewDevice
}

// Check compares the attempt's device key with the user's known devices.
func (d *DeviceNoveltyDetector) Check(_ context.Context, snap *Snapshot, attempt *LoginAttempt) ([]*AnomalyAlert, error) {
	if len(snap.KnownDevices) == 0 {
		return nil, nil
	}
	if _, ok := snap.KnownDevices[attempt.DeviceKey]; ok {
		return nil, nil
	}

	alert, err := newAlert(attempt, AlertTypeNewDevice, SeverityMedium, NewDeviceDetails{
		Fingerprint:       attempt.DeviceKey,
		KnownDevicesCount: len(snap.KnownDevices) + 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build new device alert: %w", err)
	}
	return []*AnomalyAlert{alert}, nil
}

// Configure accepts an empty JSON object. The detector has no tunables.
func (d *DeviceNoveltyDetector) Configure(config json.RawMessage) error {
	var cfg struct{}
	return decodeConfig(config, &cfg)
}

// ConfigJSON returns an empty JSON object.
func (d *DeviceNoveltyDetector) ConfigJSON() (json.RawMessage, error) {
	return json.RawMessage(`{}`), nil
}
