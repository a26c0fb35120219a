// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"
)

// PipelineRunner is satisfied by *eventprocessor.Pipeline.
type PipelineRunner interface {
	// Run consumes login attempts until ctx is canceled.
	Run(ctx context.Context) error

	// Close releases the router, connections and embedded server.
	Close(ctx context.Context) error
}

// PipelineService wraps the NATS pipeline as a supervised service.
//
// A Watermill router runs at most once, so a pipeline that stops on its own
// is closed and reported with suture.ErrDoNotRestart. The readiness probe
// then reports the pipeline as down.
type PipelineService struct {
	pipeline        PipelineRunner
	shutdownTimeout time.Duration
	name            string
}

// NewPipelineService creates a new pipeline service wrapper. A non-positive
// shutdownTimeout defaults to 30s, the router close timeout.
func NewPipelineService(pipeline PipelineRunner, shutdownTimeout time.Duration) *PipelineService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	return &PipelineService{
		pipeline:        pipeline,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-pipeline",
	}
}

// Serve implements suture.Service.
func (s *PipelineService) Serve(ctx context.Context) error {
	runErr := s.pipeline.Run(ctx)

	// ctx may already be canceled.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	closeErr := s.pipeline.Close(shutdownCtx)

	if ctx.Err() != nil {
		if closeErr != nil {
			return fmt.Errorf("nats pipeline close failed: %w", closeErr)
		}
		return ctx.Err()
	}
	return fmt.Errorf("%w: nats pipeline stopped: %w", suture.ErrDoNotRestart, errors.Join(runErr, closeErr))
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *PipelineService) String() string {
	return s.name
}
