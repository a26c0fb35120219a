// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package services

import (
	"context"
)

// DetectionEngine is satisfied by *detection.Engine.
type DetectionEngine interface {
	// RunWithContext runs retention cleanup until the context is canceled,
	// then drains in-flight notifications.
	RunWithContext(ctx context.Context) error
}

// DetectionService wraps the detection engine's background loop as a
// supervised service.
type DetectionService struct {
	engine DetectionEngine
	name   string
}

// NewDetectionService creates a new detection engine service wrapper.
func NewDetectionService(engine DetectionEngine) *DetectionService {
	return &DetectionService{
		engine: engine,
		name:   "detection-engine",
	}
}

// Serve implements suture.Service. It returns ctx.Err() on normal shutdown.
func (d *DetectionService) Serve(ctx context.Context) error {
	return d.engine.RunWithContext(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (d *DetectionService) String() string {
	return d.name
}
