// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/goccy/go-json"
)

// detectorState holds the enabled flag shared by every detector. The mutex
// also guards each detector's config.
type detectorState struct {
	mu      sync.RWMutex
	enabled bool
}

// Enabled returns whether the detector is enabled.
func (s *detectorState) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled enables or disables the detector.
func (s *detectorState) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = enabled
}

// DefaultDetectors returns the built-in detectors in evaluation order.
func DefaultDetectors(cfg Config) []Detector {
	return []Detector{
		NewDeviceNoveltyDetector(),
		NewLocationNoveltyDetector(),
		NewImpossibleTravelDetector(cfg.ImpossibleTravel),
		NewAutomatedAttackDetector(cfg.AutomatedAttack),
		NewSuspiciousTimingDetector(cfg.SuspiciousTiming),
	}
}

// decodeConfig unmarshals raw into dst, rejecting unknown fields.
func decodeConfig(raw json.RawMessage, dst interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty configuration", ErrInvalidConfig)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
