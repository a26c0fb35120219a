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

// ReasonMultipleUserAgents is the churn trigger reason in alert details.
const ReasonMultipleUserAgents = "multiple_user_agents"

// AutomatedAttackDetector flags bursts of attempts against one account and
// attempts that rotate user agents. Failed attempts count.
type AutomatedAttackDetector struct {
	detectorState
	config AutomatedAttackConfig
}

// NewAutomatedAttackDetector creates an enabled automated attack detector.
func NewAutomatedAttackDetector(config AutomatedAttackConfig) *AutomatedAttackDetector {
	d := &AutomatedAttackDetector{config: config}
	d.enabled = true
	return d
}

// Type returns AlertTypeAutomatedAttack.
func (d *AutomatedAttackDetector) Type() AlertType {
	return AlertTypeAutomatedAttack
}

// Check counts the attempts in the window ending at the incoming attempt,
// the incoming attempt included. Both triggers may fire at once.
func (d *AutomatedAttackDetector) Check(_ context.Context, snap *Snapshot, attempt *LoginAttempt) ([]*AnomalyAlert, error) {
	config := d.Config()

	window := time.Duration(config.WindowMinutes) * time.Minute
	since := attempt.Timestamp.Add(-window)

	total := 1
	userAgents := map[string]struct{}{attempt.UserAgent: {}}
	for i := range snap.Attempts {
		a := &snap.Attempts[i]
		if a.Timestamp.Before(since) || a.Timestamp.After(attempt.Timestamp) {
			continue
		}
		total++
		userAgents[a.UserAgent] = struct{}{}
	}

	var alerts []*AnomalyAlert

	if total > config.MaxAttempts {
		alert, err := newAlert(attempt, AlertTypeAutomatedAttack, SeverityHigh, AttackVolumeDetails{
			AttemptsInHour: total,
			TimeWindow:     formatWindow(config.WindowMinutes),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build attack volume alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	// The small epsilon keeps ratio*total from missing an exact boundary
	// to float rounding.
	const floatEpsilon = 1e-9
	unique := len(userAgents)
	if total > config.UserAgentMinAttempts && float64(unique) >= config.UserAgentRatio*float64(total)-floatEpsilon {
		alert, err := newAlert(attempt, AlertTypeAutomatedAttack, SeverityMedium, UserAgentChurnDetails{
			Reason:           ReasonMultipleUserAgents,
			UniqueUserAgents: unique,
			TotalAttempts:    total,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build user agent churn alert: %w", err)
		}
		alerts = append(alerts, alert)
	}

	return alerts, nil
}

// Configure updates the detector configuration.
func (d *AutomatedAttackDetector) Configure(config json.RawMessage) error {
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
func (d *AutomatedAttackDetector) ConfigJSON() (json.RawMessage, error) {
	return json.Marshal(d.Config())
}

// Config returns the current configuration.
func (d *AutomatedAttackDetector) Config() AutomatedAttackConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// formatWindow renders a window size the way alert details report it,
// e.g. "1 hour", "2 hours" or "90 minutes".
func formatWindow(minutes int) string {
	if minutes%60 == 0 {
		hours := minutes / 60
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}
