// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/logging"
)

// PublisherNotifier publishes alerts to a message topic so other systems can
// react to them.
type PublisherNotifier struct {
	publisher message.Publisher
	topic     string
}

// NewPublisherNotifier creates a notifier publishing to topic.
func NewPublisherNotifier(publisher message.Publisher, topic string) *PublisherNotifier {
	return &PublisherNotifier{publisher: publisher, topic: topic}
}

// Name returns the notifier name.
func (n *PublisherNotifier) Name() string {
	return "publisher"
}

// Enabled reports whether a publisher and topic are set.
func (n *PublisherNotifier) Enabled() bool {
	return n.publisher != nil && n.topic != ""
}

// Send publishes the alert as JSON. The alert ID is the message UUID, so
// redelivered alerts can be deduplicated downstream.
func (n *PublisherNotifier) Send(ctx context.Context, alert *AnomalyAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	msg := message.NewMessage(alert.ID, payload)
	msg.Metadata.Set(MetadataAlertType, string(alert.Type))
	msg.Metadata.Set(MetadataSeverity, string(alert.Severity))
	msg.Metadata.Set(MetadataUserID, alert.UserID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(MetadataCorrelationID, id)
	}
	msg.SetContext(ctx)

	if err := n.publisher.Publish(n.topic, msg); err != nil {
		return fmt.Errorf("failed to publish alert to %s: %w", n.topic, err)
	}
	return nil
}
