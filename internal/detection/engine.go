// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/authsentry/internal/logging"
	"github.com/tomtom215/authsentry/internal/metrics"
	"github.com/tomtom215/authsentry/internal/validation"
)

// Engine analyzes login attempts against the registered detectors and owns
// the attempt and alert stores.
//
// Analysis of one user is serialized: snapshot, detection and commit happen
// under that user's lock, so two concurrent attempts for the same user are
// each evaluated against a history that includes the other or neither.
type Engine struct {
	attempts *AttemptStore
	alerts   *AlertStore
	locks    userLocks

	mu        sync.RWMutex
	config    Config
	enabled   bool
	detectors []Detector
	notifiers []Notifier
	geo       GeoResolver
	now       func() time.Time
	closed    bool

	notifyWG sync.WaitGroup
}

// NewEngine creates an engine with the built-in detectors registered in
// evaluation order.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		attempts: NewAttemptStore(cfg.MaxAttemptsPerUser),
		alerts:   NewAlertStore(),
		config:   cfg,
		enabled:  true,
		now:      time.Now,
	}
	for _, d := range DefaultDetectors(cfg) {
		e.RegisterDetector(d)
	}
	for _, t := range cfg.DisabledDetectors {
		if err := e.SetDetectorEnabled(t, false); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// RegisterDetector adds a detector. A detector with the same type replaces
// the registered one in place.
func (e *Engine) RegisterDetector(detector Detector) {
	e.mu.Lock()
	defer e.mu.Unlock()

	alertType := detector.Type()
	for i, d := range e.detectors {
		if d.Type() == alertType {
			e.detectors[i] = detector
			logging.Info().Str("detector", string(alertType)).Msg("replaced detector")
			return
		}
	}
	e.detectors = append(e.detectors, detector)
	logging.Debug().Str("detector", string(alertType)).Msg("registered detector")
}

// RegisterNotifier adds a notifier.
func (e *Engine) RegisterNotifier(notifier Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.notifiers = append(e.notifiers, notifier)
	logging.Info().Str("notifier", notifier.Name()).Msg("registered notifier")
}

// SetGeoResolver sets the resolver used for attempts that arrive with a
// source IP but no location.
func (e *Engine) SetGeoResolver(resolver GeoResolver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.geo = resolver
}

// SetClock replaces the clock used to stamp alerts and compute retention
// cutoffs.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// SetEnabled enables or disables the engine.
func (e *Engine) SetEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = enabled
}

// Enabled returns whether the engine is enabled.
func (e *Engine) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

func (e *Engine) clock() time.Time {
	e.mu.RLock()
	now := e.now
	e.mu.RUnlock()
	return now()
}

// AnalyzeLoginAttempt runs every enabled detector against the attempt and the
// user's history, then records the attempt and the alerts it produced.
//
// The attempt is committed only when every detector succeeded. On failure
// the stores are untouched and the returned error wraps ErrAnalysisFailed.
// A disabled engine returns nil, nil and records nothing.
func (e *Engine) AnalyzeLoginAttempt(ctx context.Context, in LoginAttemptInput) ([]AnomalyAlert, error) {
	start := time.Now()

	if in.UserID == "" {
		metrics.RecordAnalysisError("invalid_attempt")
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidAttempt)
	}
	if verr := validation.ValidateStruct(&in); verr != nil {
		metrics.RecordAnalysisError("invalid_attempt")
		return nil, fmt.Errorf("%w: %w", ErrInvalidAttempt, verr)
	}

	e.mu.RLock()
	enabled, precision, geo := e.enabled, e.config.LocationPrecision, e.geo
	e.mu.RUnlock()
	if !enabled {
		return nil, nil
	}

	in = cloneInput(in)
	if in.Timestamp.IsZero() {
		in.Timestamp = e.clock()
	}
	// Resolve outside the user lock; lookups may be slow.
	if in.GeoLocation == nil && in.SourceIP != "" && geo != nil {
		e.enrichWithGeolocation(ctx, geo, &in)
	}

	attempt := LoginAttempt{
		ID:                uuid.NewString(),
		LoginAttemptInput: in,
		DeviceKey:         FingerprintKey(in.Fingerprint),
		LocationKey:       LocationKey(in.GeoLocation, precision),
	}

	log := logging.Ctx(ctx).With().
		Str("user_id", attempt.UserID).
		Str("email", logging.SanitizeEmail(attempt.Email)).
		Str("source_ip", logging.MaskIP(attempt.SourceIP)).
		Logger()

	detectors := e.enabledDetectors()

	unlock := e.locks.lock(attempt.UserID)
	snap := e.attempts.Snapshot(attempt.UserID)
	found, err := e.runDetectors(ctx, detectors, snap, &attempt)
	if err != nil {
		unlock()
		metrics.RecordAnalysis(false, time.Since(start))
		metrics.RecordAnalysisError("detector_failed")
		log.Error().Err(err).Msg("login attempt analysis failed")
		return nil, fmt.Errorf("%w: %w", ErrAnalysisFailed, err)
	}

	stamped := e.clock()
	alerts := make([]AnomalyAlert, 0, len(found))
	for _, a := range found {
		a.ID = uuid.NewString()
		a.Timestamp = stamped
		alerts = append(alerts, *a)
	}

	evicted := e.attempts.Append(attempt)
	e.attempts.Remember(attempt.UserID, attempt.DeviceKey, attempt.LocationKey)
	for i := range alerts {
		e.alerts.Record(alerts[i])
	}
	unlock()

	metrics.RecordAnalysis(true, time.Since(start))
	metrics.SetTrackedUsers(e.attempts.UserCount())
	for i := range alerts {
		metrics.RecordAlert(string(alerts[i].Type), string(alerts[i].Severity))
	}

	if evicted > 0 {
		log.Debug().Int("evicted", evicted).Msg("attempt history capped")
	}
	if len(alerts) > 0 {
		log.Info().Int("count", len(alerts)).Msg("generated anomaly alerts")
		e.notify(ctx, alerts)
	}

	return alerts, nil
}

// enabledDetectors returns the enabled detectors in registration order.
func (e *Engine) enabledDetectors() []Detector {
	e.mu.RLock()
	defer e.mu.RUnlock()

	detectors := make([]Detector, 0, len(e.detectors))
	for _, d := range e.detectors {
		if d.Enabled() {
			detectors = append(detectors, d)
		}
	}
	return detectors
}

// enrichWithGeolocation fills in the attempt location from its source IP.
// Lookup failures leave the attempt without a location.
func (e *Engine) enrichWithGeolocation(ctx context.Context, geo GeoResolver, in *LoginAttemptInput) {
	loc, err := geo.Resolve(ctx, in.SourceIP)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).
			Str("source_ip", logging.MaskIP(in.SourceIP)).
			Msg("geolocation lookup failed")
		return
	}
	in.GeoLocation = loc
}

// runDetectors runs the detectors concurrently against the same snapshot.
// Alerts keep registration order. The first error, or a recovered panic,
// fails the whole run.
func (e *Engine) runDetectors(ctx context.Context, detectors []Detector, snap *Snapshot, attempt *LoginAttempt) ([]*AnomalyAlert, error) {
	results := make([][]*AnomalyAlert, len(detectors))
	errs := make([]error, len(detectors))

	var wg sync.WaitGroup
	for i, d := range detectors {
		wg.Add(1)
		go func(i int, d Detector) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("%s: panic: %v", d.Type(), r)
				}
			}()
			alerts, err := d.Check(ctx, snap, attempt)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", d.Type(), err)
				return
			}
			results[i] = alerts
		}(i, d)
	}
	wg.Wait()

	var found []*AnomalyAlert
	for i, d := range detectors {
		if errs[i] != nil {
			metrics.RecordDetectorError(string(d.Type()))
			return nil, errs[i]
		}
		for _, a := range results[i] {
			if a != nil {
				found = append(found, a)
			}
		}
	}
	return found, nil
}

// notify delivers alerts to every enabled notifier in the background. A slow
// or failing notifier never affects analysis. After Close alerts are still
// recorded but no longer delivered.
//
// The read lock is held until every delivery is added to notifyWG, so Close
// cannot start waiting while deliveries are being added.
func (e *Engine) notify(ctx context.Context, alerts []AnomalyAlert) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	timeout := e.config.NotifyTimeout
	notifiers := make([]Notifier, 0, len(e.notifiers))
	for _, n := range e.notifiers {
		if n.Enabled() {
			notifiers = append(notifiers, n)
		}
	}
	if len(notifiers) == 0 {
		return
	}

	if e.closed {
		for _, n := range notifiers {
			metrics.RecordNotification(n.Name(), "dropped")
		}
		logging.Ctx(ctx).Warn().
			Int("alerts", len(alerts)).
			Msg("engine closed, alerts not delivered")
		return
	}

	base := context.WithoutCancel(ctx)
	for i := range alerts {
		alert := alerts[i]
		for _, n := range notifiers {
			e.notifyWG.Add(1)
			go func(n Notifier, a AnomalyAlert) {
				defer e.notifyWG.Done()
				sendCtx, cancel := context.WithTimeout(base, timeout)
				defer cancel()

				if err := n.Send(sendCtx, &a); err != nil {
					metrics.RecordNotification(n.Name(), "error")
					logging.Ctx(sendCtx).Error().Err(err).
						Str("notifier", n.Name()).
						Str("alert_id", a.ID).
						Msg("failed to send alert")
					return
				}
				metrics.RecordNotification(n.Name(), "success")
			}(n, alert)
		}
	}
}

// RecentAlerts returns the user's alerts newest first. limit <= 0 returns all.
func (e *Engine) RecentAlerts(userID string, limit int) []AnomalyAlert {
	return e.alerts.ByUser(userID, limit)
}

// HighSeverityAlerts returns high and critical alerts across all users,
// newest first. limit <= 0 returns all.
func (e *Engine) HighSeverityAlerts(limit int) []AnomalyAlert {
	return e.alerts.HighSeverity(limit)
}

// AnomalyStats aggregates every stored alert.
func (e *Engine) AnomalyStats() Stats {
	return e.alerts.Stats()
}

// UserHistory returns the user's retained attempts, oldest first.
func (e *Engine) UserHistory(userID string) []LoginAttempt {
	return e.attempts.Attempts(userID)
}

// Cleanup purges attempts and alerts older than olderThanDays. Users left
// without attempts lose their bucket and known sets. olderThanDays <= 0
// uses the configured retention.
func (e *Engine) Cleanup(olderThanDays int) CleanupResult {
	if olderThanDays <= 0 {
		e.mu.RLock()
		olderThanDays = e.config.RetentionDays
		e.mu.RUnlock()
	}
	cutoff := e.clock().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	users := make(map[string]struct{})
	for _, id := range e.attempts.UserIDs() {
		users[id] = struct{}{}
	}
	for _, id := range e.alerts.UserIDs() {
		users[id] = struct{}{}
	}

	var result CleanupResult
	for userID := range users {
		unlock := e.locks.lock(userID)
		removed, dropped := e.attempts.PurgeOlderThan(userID, cutoff)
		alertsRemoved, _ := e.alerts.PurgeOlderThan(userID, cutoff)
		unlock()

		result.AttemptsRemoved += removed
		result.AlertsRemoved += alertsRemoved
		if dropped {
			result.UsersDropped++
		}
	}

	metrics.RecordRetention(result.AttemptsRemoved, result.AlertsRemoved, result.UsersDropped)
	metrics.SetTrackedUsers(e.attempts.UserCount())

	logging.Info().
		Int("older_than_days", olderThanDays).
		Int("attempts_removed", result.AttemptsRemoved).
		Int("alerts_removed", result.AlertsRemoved).
		Int("users_dropped", result.UsersDropped).
		Msg("retention cleanup completed")

	return result
}

// RunWithContext runs the retention loop until the context is canceled, then
// waits for in-flight notifications. It returns ctx.Err() on shutdown, which
// lets suture treat it as a normal stop.
func (e *Engine) RunWithContext(ctx context.Context) error {
	e.mu.RLock()
	interval := e.config.CleanupInterval
	e.mu.RUnlock()

	logging.Info().Str("cleanup_interval", interval.String()).Msg("detection engine started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("detection engine shutting down")
			if err := e.Close(); err != nil {
				logging.Error().Err(err).Msg("error during shutdown")
			}
			return ctx.Err()
		case <-ticker.C:
			e.Cleanup(0)
		}
	}
}

// Close stops notification delivery and waits for in-flight notifications.
// Analysis keeps working after Close.
func (e *Engine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.notifyWG.Wait()
	return nil
}

// ListDetectors describes the registered detectors in evaluation order.
func (e *Engine) ListDetectors() []DetectorInfo {
	e.mu.RLock()
	detectors := make([]Detector, len(e.detectors))
	copy(detectors, e.detectors)
	e.mu.RUnlock()

	infos := make([]DetectorInfo, 0, len(detectors))
	for _, d := range detectors {
		cfg, err := d.ConfigJSON()
		if err != nil {
			logging.Warn().Err(err).Str("detector", string(d.Type())).Msg("failed to encode detector config")
			cfg = json.RawMessage(`null`)
		}
		infos = append(infos, DetectorInfo{
			Type:    d.Type(),
			Enabled: d.Enabled(),
			Config:  cfg,
		})
	}
	return infos
}

func (e *Engine) detector(alertType AlertType) (Detector, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, d := range e.detectors {
		if d.Type() == alertType {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrDetectorNotFound, alertType)
}

// SetDetectorEnabled enables or disables a detector.
func (e *Engine) SetDetectorEnabled(alertType AlertType, enabled bool) error {
	d, err := e.detector(alertType)
	if err != nil {
		return err
	}
	d.SetEnabled(enabled)
	logging.Info().Str("detector", string(alertType)).Bool("enabled", enabled).Msg("detector toggled")
	return nil
}

// ConfigureDetector replaces a detector's configuration. The JSON is merged
// over the current configuration, so partial updates are allowed.
func (e *Engine) ConfigureDetector(alertType AlertType, config json.RawMessage) error {
	d, err := e.detector(alertType)
	if err != nil {
		return err
	}
	if err := d.Configure(config); err != nil {
		return err
	}
	logging.Info().Str("detector", string(alertType)).Msg("detector reconfigured")
	return nil
}

// cloneInput copies the pointer fields so the stored attempt shares nothing
// with the caller.
func cloneInput(in LoginAttemptInput) LoginAttemptInput {
	if in.GeoLocation != nil {
		loc := *in.GeoLocation
		in.GeoLocation = &loc
	}
	if in.Fingerprint != nil {
		fp := *in.Fingerprint
		if fp.Extra != nil {
			extra := make(map[string]string, len(fp.Extra))
			for k, v := range fp.Extra {
				extra[k] = v
			}
			fp.Extra = extra
		}
		in.Fingerprint = &fp
	}
	return in
}
