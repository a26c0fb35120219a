// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
)

// Metadata keys set on consumed and published messages.
const (
	MetadataCorrelationID = "correlation_id"
	MetadataAlertType     = "alert_type"
	MetadataSeverity      = "severity"
	MetadataUserID        = "user_id"
)

// Analyzer is the part of the engine the message handler needs.
type Analyzer interface {
	AnalyzeLoginAttempt(ctx context.Context, in LoginAttemptInput) ([]AnomalyAlert, error)
	Enabled() bool
}

// WatermillHandler consumes login attempts from the message stream and runs
// them through the engine. It is registered with Router.AddConsumerHandler.
//
// Error handling:
//   - Malformed or invalid attempts return nil (ack, they will never succeed)
//   - Analysis failures return the error so Retry and PoisonQueue apply
type WatermillHandler struct {
	engine  Analyzer
	timeout time.Duration
}

// NewWatermillHandler creates a handler. timeout bounds one analysis; zero
// means 10 seconds.
func NewWatermillHandler(engine Analyzer, timeout time.Duration) *WatermillHandler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WatermillHandler{engine: engine, timeout: timeout}
}

// Handle processes one login attempt message.
func (h *WatermillHandler) Handle(msg *message.Message) error {
	if h.engine == nil || !h.engine.Enabled() {
		metrics.RecordMessageConsumed("skipped")
		return nil
	}

	ctx := msg.Context()
	if id := msg.Metadata.Get(MetadataCorrelationID); id != "" {
		ctx = logging.ContextWithCorrelationID(ctx, id)
	} else {
		ctx = logging.ContextWithCorrelationID(ctx, msg.UUID)
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var in LoginAttemptInput
	if err := json.Unmarshal(msg.Payload, &in); err != nil {
		metrics.RecordMessageConsumed("malformed")
		logging.Ctx(ctx).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("failed to parse login attempt")
		return nil
	}

	alerts, err := h.engine.AnalyzeLoginAttempt(ctx, in)
	if err != nil {
		if errors.Is(err, ErrInvalidAttempt) {
			metrics.RecordMessageConsumed("invalid")
			logging.Ctx(ctx).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping invalid login attempt")
			return nil
		}
		metrics.RecordMessageConsumed("error")
		return err
	}

	metrics.RecordMessageConsumed("processed")
	if len(alerts) > 0 {
		logging.Ctx(ctx).Debug().
			Str("message_uuid", msg.UUID).
			Int("alerts", len(alerts)).
			Msg("login attempt raised alerts")
	}
	return nil
}
