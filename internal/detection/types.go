// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// AlertType identifies the detector that raised an alert.
type AlertType string

const (
	// AlertTypeNewDevice fires when a user logs in from an unseen device fingerprint.
	AlertTypeNewDevice AlertType = "new_device"

	// AlertTypeNewLocation fires when a user logs in from an unseen location zone.
	AlertTypeNewLocation AlertType = "new_location"

	// AlertTypeImpossibleTravel fires when two successful logins imply an
	// implausible travel speed.
	AlertTypeImpossibleTravel AlertType = "impossible_travel"

	// AlertTypeAutomatedAttack fires on high attempt volume or user agent churn.
	AlertTypeAutomatedAttack AlertType = "automated_attack"

	// AlertTypeSuspiciousTiming fires on night logins outside the user's usual hours.
	AlertTypeSuspiciousTiming AlertType = "suspicious_timing"
)

// Severity is a coarse urgency ranking, not a probability.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsHigh reports whether s is high or critical.
func (s Severity) IsHigh() bool {
	return s == SeverityHigh || s == SeverityCritical
}

var (
	// ErrInvalidAttempt is returned for attempts the engine cannot key (no user ID).
	ErrInvalidAttempt = errors.New("invalid login attempt")

	// ErrAnalysisFailed is returned when a detector fails. Nothing from the
	// attempt is committed, so the caller may retry.
	ErrAnalysisFailed = errors.New("login attempt analysis failed")

	// ErrDetectorNotFound is returned for an unknown detector type.
	ErrDetectorNotFound = errors.New("detector not found")

	// ErrInvalidConfig is returned when a detector rejects its configuration.
	ErrInvalidConfig = errors.New("invalid detector configuration")
)

// GeoLocation is the resolved location of a login attempt.
type GeoLocation struct {
	Country   string  `json:"country" validate:"max=128"`
	City      string  `json:"city" validate:"max=256"`
	Latitude  float64 `json:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" validate:"longitude"`
	Timezone  string  `json:"timezone,omitempty" validate:"max=64"`
	Accuracy  float64 `json:"accuracy,omitempty" validate:"gte=0"`
}

// EnvironmentFingerprint holds the client environment probe collected once
// per session. Canvas and WebGL are opaque probe strings and are never
// interpreted.
type EnvironmentFingerprint struct {
	Language            string            `json:"language,omitempty"`
	Timezone            string            `json:"timezone,omitempty"`
	ScreenWidth         int               `json:"screenWidth,omitempty"`
	ScreenHeight        int               `json:"screenHeight,omitempty"`
	ColorDepth          int               `json:"colorDepth,omitempty"`
	HardwareConcurrency int               `json:"hardwareConcurrency,omitempty"`
	Platform            string            `json:"platform,omitempty"`
	Canvas              string            `json:"canvas,omitempty"`
	WebGL               string            `json:"webgl,omitempty"`
	Extra               map[string]string `json:"extra,omitempty"`
}

// LoginAttemptInput is a login attempt as submitted by the caller.
type LoginAttemptInput struct {
	UserID      string                  `json:"userId" validate:"required,max=256"`
	Email       string                  `json:"email,omitempty" validate:"max=320"`
	Timestamp   time.Time               `json:"timestamp"`
	SourceIP    string                  `json:"sourceIp,omitempty" validate:"omitempty,ip"`
	UserAgent   string                  `json:"userAgent,omitempty" validate:"max=2048"`
	Success     bool                    `json:"success"`
	GeoLocation *GeoLocation            `json:"geoLocation,omitempty" validate:"omitempty"`
	Fingerprint *EnvironmentFingerprint `json:"fingerprint,omitempty"`
}

// LoginAttempt is an accepted attempt. It is never mutated after it enters
// the attempt store.
type LoginAttempt struct {
	ID string `json:"id"`
	LoginAttemptInput

	// DeviceKey is the fingerprint hash of the attempt.
	DeviceKey string `json:"deviceKey"`

	// LocationKey is empty when the attempt has no location.
	LocationKey string `json:"locationKey,omitempty"`
}

// AnomalyAlert is produced by a detector and never mutated afterwards.
type AnomalyAlert struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Email     string          `json:"email"`
	Type      AlertType       `json:"type"`
	Severity  Severity        `json:"severity"`
	Timestamp time.Time       `json:"timestamp"`
	Details   json.RawMessage `json:"details"`
	SourceIP  string          `json:"sourceIp,omitempty"`
	UserAgent string          `json:"userAgent,omitempty"`
}

// NewDeviceDetails is the details payload of new_device alerts.
type NewDeviceDetails struct {
	Fingerprint       string `json:"fingerprint"`
	KnownDevicesCount int    `json:"knownDevicesCount"`
}

// NewLocationDetails is the details payload of new_location alerts.
type NewLocationDetails struct {
	Location            GeoLocation `json:"location"`
	KnownLocationsCount int         `json:"knownLocationsCount"`
}

// ImpossibleTravelDetails is the details payload of impossible_travel alerts.
// Distance is in km, TimeDiff in hours and Speed in km/h.
type ImpossibleTravelDetails struct {
	Distance     float64     `json:"distance"`
	TimeDiff     float64     `json:"timeDiff"`
	Speed        float64     `json:"speed"`
	FromLocation GeoLocation `json:"fromLocation"`
	ToLocation   GeoLocation `json:"toLocation"`
}

// AttackVolumeDetails is the details payload of the volume trigger.
type AttackVolumeDetails struct {
	AttemptsInHour int    `json:"attemptsInHour"`
	TimeWindow     string `json:"timeWindow"`
}

// UserAgentChurnDetails is the details payload of the user agent churn trigger.
type UserAgentChurnDetails struct {
	Reason           string `json:"reason"`
	UniqueUserAgents int    `json:"uniqueUserAgents"`
	TotalAttempts    int    `json:"totalAttempts"`
}

// SuspiciousTimingDetails is the details payload of suspicious_timing alerts.
type SuspiciousTimingDetails struct {
	UnusualHour  int    `json:"unusualHour"`
	UsualHours   []int  `json:"usualHours"`
	TimeCategory string `json:"timeCategory"`
}

// Detector checks one attempt against a point-in-time snapshot of the user's
// history. Implementations must not retain or mutate the snapshot.
type Detector interface {
	// Type returns the alert type this detector raises.
	Type() AlertType

	// Check returns zero or more alerts. Missing optional data is not an
	// error; the detector returns nil, nil.
	Check(ctx context.Context, snap *Snapshot, attempt *LoginAttempt) ([]*AnomalyAlert, error)

	// Configure replaces the detector configuration from JSON.
	Configure(config json.RawMessage) error

	// ConfigJSON returns the current configuration.
	ConfigJSON() (json.RawMessage, error)

	Enabled() bool
	SetEnabled(enabled bool)
}

// Notifier delivers alerts to an external sink.
type Notifier interface {
	Send(ctx context.Context, alert *AnomalyAlert) error
	Name() string
	Enabled() bool
}

// GeoResolver resolves an IP address to a location. A nil location with a
// nil error means the address is unknown.
type GeoResolver interface {
	Resolve(ctx context.Context, ip string) (*GeoLocation, error)
}

// DetectorInfo describes a registered detector.
type DetectorInfo struct {
	Type    AlertType       `json:"type"`
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config"`
}

// Stats aggregates the alert store.
type Stats struct {
	TotalAlerts int               `json:"totalAlerts"`
	ByType      map[AlertType]int `json:"byType"`
	BySeverity  map[Severity]int  `json:"bySeverity"`
	TopUsers    []UserAlertCount  `json:"topUsers"`
}

// UserAlertCount is one row of the top users ranking.
type UserAlertCount struct {
	UserID     string `json:"userId"`
	Email      string `json:"email"`
	AlertCount int    `json:"alertCount"`
}

// CleanupResult reports what a retention run removed.
type CleanupResult struct {
	AttemptsRemoved int `json:"attemptsRemoved"`
	AlertsRemoved   int `json:"alertsRemoved"`
	UsersDropped    int `json:"usersDropped"`
}

// newAlert builds an alert for attempt with the given details payload. The
// engine assigns ID and Timestamp when it records the alert.
func newAlert(attempt *LoginAttempt, alertType AlertType, severity Severity, details interface{}) (*AnomalyAlert, error) {
	raw, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return &AnomalyAlert{
		UserID:    attempt.UserID,
		Email:     attempt.Email,
		Type:      alertType,
		Severity:  severity,
		Details:   raw,
		SourceIP:  attempt.SourceIP,
		UserAgent: attempt.UserAgent,
	}, nil
}
