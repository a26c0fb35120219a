// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"fmt"
	"time"
	_ "time/tzdata" // timezone names resolve without system zoneinfo
)

// Config holds engine-wide settings and the initial detector configurations.
type Config struct {
	// MaxAttemptsPerUser caps each user's attempt history.
	MaxAttemptsPerUser int

	// LocationPrecision is the number of decimals coordinates are rounded to
	// when computing location keys.
	LocationPrecision int

	// RetentionDays is the age after which RunWithContext purges history.
	RetentionDays int

	// CleanupInterval is the period of the retention loop.
	CleanupInterval time.Duration

	// NotifyTimeout bounds a single notifier delivery.
	NotifyTimeout time.Duration

	// DisabledDetectors lists detector types that start disabled.
	DisabledDetectors []AlertType

	ImpossibleTravel ImpossibleTravelConfig
	AutomatedAttack  AutomatedAttackConfig
	SuspiciousTiming SuspiciousTimingConfig
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttemptsPerUser: DefaultMaxAttemptsPerUser,
		LocationPrecision:  1,
		RetentionDays:      30,
		CleanupInterval:    24 * time.Hour,
		NotifyTimeout:      10 * time.Second,
		ImpossibleTravel:   DefaultImpossibleTravelConfig(),
		AutomatedAttack:    DefaultAutomatedAttackConfig(),
		SuspiciousTiming:   DefaultSuspiciousTimingConfig(),
	}
}

// ImpossibleTravelConfig configures the impossible travel detector.
type ImpossibleTravelConfig struct {
	// MaxSpeedKmH is the highest plausible travel speed.
	MaxSpeedKmH float64 `json:"max_speed_kmh"`

	// MaxTimeGapHours skips comparisons with logins further apart than this.
	MaxTimeGapHours float64 `json:"max_time_gap_hours"`

	// HistoryLimit is how many recent successful located logins are considered.
	HistoryLimit int `json:"history_limit"`

	// MinTimeHours floors the elapsed time used for the speed calculation.
	MinTimeHours float64 `json:"min_time_hours"`
}

// DefaultImpossibleTravelConfig returns sensible defaults.
func DefaultImpossibleTravelConfig() ImpossibleTravelConfig {
	return ImpossibleTravelConfig{
		MaxSpeedKmH:     1000,
		MaxTimeGapHours: 24,
		HistoryLimit:    10,
		MinTimeHours:    1,
	}
}

func (c ImpossibleTravelConfig) validate() error {
	if c.MaxSpeedKmH <= 0 {
		return fmt.Errorf("%w: max_speed_kmh must be positive", ErrInvalidConfig)
	}
	if c.MaxTimeGapHours <= 0 {
		return fmt.Errorf("%w: max_time_gap_hours must be positive", ErrInvalidConfig)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("%w: history_limit must be positive", ErrInvalidConfig)
	}
	if c.MinTimeHours <= 0 {
		return fmt.Errorf("%w: min_time_hours must be positive", ErrInvalidConfig)
	}
	return nil
}

// AutomatedAttackConfig configures the automated attack detector.
type AutomatedAttackConfig struct {
	// WindowMinutes is the sliding window size.
	WindowMinutes int `json:"window_minutes"`

	// MaxAttempts is the highest attempt count in the window that does not alert.
	MaxAttempts int `json:"max_attempts"`

	// UserAgentMinAttempts is the attempt count the churn check needs to exceed.
	UserAgentMinAttempts int `json:"user_agent_min_attempts"`

	// UserAgentRatio is the distinct user agent share that counts as churn.
	UserAgentRatio float64 `json:"user_agent_ratio"`
}

// DefaultAutomatedAttackConfig returns sensible defaults.
func DefaultAutomatedAttackConfig() AutomatedAttackConfig {
	return AutomatedAttackConfig{
		WindowMinutes:        60,
		MaxAttempts:          20,
		UserAgentMinAttempts: 5,
		UserAgentRatio:       0.8,
	}
}

func (c AutomatedAttackConfig) validate() error {
	if c.WindowMinutes <= 0 {
		return fmt.Errorf("%w: window_minutes must be positive", ErrInvalidConfig)
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("%w: max_attempts must be positive", ErrInvalidConfig)
	}
	if c.UserAgentMinAttempts < 0 {
		return fmt.Errorf("%w: user_agent_min_attempts cannot be negative", ErrInvalidConfig)
	}
	if c.UserAgentRatio <= 0 || c.UserAgentRatio > 1 {
		return fmt.Errorf("%w: user_agent_ratio must be in (0, 1]", ErrInvalidConfig)
	}
	return nil
}

// SuspiciousTimingConfig configures the suspicious timing detector.
type SuspiciousTimingConfig struct {
	// MinSuccessfulAttempts is the history needed before hours are profiled.
	MinSuccessfulAttempts int `json:"min_successful_attempts"`

	// UsualHourRatio is the share of successful logins an hour must exceed
	// to count as usual.
	UsualHourRatio float64 `json:"usual_hour_ratio"`

	// NightStartHour and NightEndHour bound the night range, inclusive.
	NightStartHour int `json:"night_start_hour"`
	NightEndHour   int `json:"night_end_hour"`

	// Timezone is the IANA zone hours are evaluated in.
	Timezone string `json:"timezone"`
}

// DefaultSuspiciousTimingConfig returns sensible defaults.
func DefaultSuspiciousTimingConfig() SuspiciousTimingConfig {
	return SuspiciousTimingConfig{
		MinSuccessfulAttempts: 5,
		UsualHourRatio:        0.1,
		NightStartHour:        2,
		NightEndHour:          5,
		Timezone:              "UTC",
	}
}

func (c SuspiciousTimingConfig) validate() (*time.Location, error) {
	if c.MinSuccessfulAttempts <= 0 {
		return nil, fmt.Errorf("%w: min_successful_attempts must be positive", ErrInvalidConfig)
	}
	if c.UsualHourRatio < 0 || c.UsualHourRatio >= 1 {
		return nil, fmt.Errorf("%w: usual_hour_ratio must be in [0, 1)", ErrInvalidConfig)
	}
	if c.NightStartHour < 0 || c.NightStartHour > 23 || c.NightEndHour < 0 || c.NightEndHour > 23 {
		return nil, fmt.Errorf("%w: night hours must be in [0, 23]", ErrInvalidConfig)
	}
	if c.NightStartHour > c.NightEndHour {
		return nil, fmt.Errorf("%w: night_start_hour must not exceed night_end_hour", ErrInvalidConfig)
	}
	tz := c.Timezone
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// validate checks the engine-wide settings and every detector config.
func (c Config) validate() error {
	if c.MaxAttemptsPerUser <= 0 {
		return fmt.Errorf("%w: max attempts per user must be positive", ErrInvalidConfig)
	}
	if c.LocationPrecision < 0 || c.LocationPrecision > 6 {
		return fmt.Errorf("%w: location precision must be in [0, 6]", ErrInvalidConfig)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention days must be positive", ErrInvalidConfig)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("%w: cleanup interval must be positive", ErrInvalidConfig)
	}
	if c.NotifyTimeout <= 0 {
		return fmt.Errorf("%w: notify timeout must be positive", ErrInvalidConfig)
	}
	if err := c.ImpossibleTravel.validate(); err != nil {
		return err
	}
	if err := c.AutomatedAttack.validate(); err != nil {
		return err
	}
	_, err := c.SuspiciousTiming.validate()
	return err
}
