// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package detection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/validation"
)

var testNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	e.SetClock(func() time.Time { return testNow })
	return e
}

func laptop() *EnvironmentFingerprint {
	return &EnvironmentFingerprint{
		Language:            "en-US",
		Timezone:            "Europe/Paris",
		ScreenWidth:         1920,
		ScreenHeight:        1080,
		ColorDepth:          24,
		HardwareConcurrency: 8,
		Platform:            "MacIntel",
	}
}

func phone() *EnvironmentFingerprint {
	return &EnvironmentFingerprint{
		Language:            "fr-FR",
		Timezone:            "Africa/Abidjan",
		ScreenWidth:         390,
		ScreenHeight:        844,
		ColorDepth:          32,
		HardwareConcurrency: 6,
		Platform:            "iPhone",
	}
}

func input(userID string, ts time.Time) LoginAttemptInput {
	return LoginAttemptInput{
		UserID:    userID,
		Email:     userID + "@example.com",
		Timestamp: ts,
		SourceIP:  "203.0.113.10",
		UserAgent: "Mozilla/5.0",
		Success:   true,
	}
}

func analyze(t *testing.T, e *Engine, in LoginAttemptInput) []AnomalyAlert {
	t.Helper()
	alerts, err := e.AnalyzeLoginAttempt(context.Background(), in)
	if err != nil {
		t.Fatalf("AnalyzeLoginAttempt() error = %v", err)
	}
	return alerts
}

func alertTypes(alerts []AnomalyAlert) []AlertType {
	out := make([]AlertType, len(alerts))
	for i, a := range alerts {
		out[i] = a.Type
	}
	return out
}

func TestEngine_ColdStart(t *testing.T) {
	e := newTestEngine(t)

	in := input("u1", testNow)
	in.Fingerprint = laptop()
	loc := *paris
	in.GeoLocation = &loc

	if alerts := analyze(t, e, in); len(alerts) != 0 {
		t.Fatalf("first attempt raised %v, want none", alertTypes(alerts))
	}
	if got := len(e.UserHistory("u1")); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
}

func TestEngine_NewDevice(t *testing.T) {
	e := newTestEngine(t)

	first := input("u1", testNow.Add(-2*time.Hour))
	first.Fingerprint = laptop()
	analyze(t, e, first)

	second := input("u1", testNow.Add(-time.Hour))
	second.Fingerprint = phone()
	alerts := analyze(t, e, second)
	if len(alerts) != 1 || alerts[0].Type != AlertTypeNewDevice {
		t.Fatalf("alerts = %v, want [new_device]", alertTypes(alerts))
	}
	if alerts[0].ID == "" {
		t.Error("alert ID not assigned")
	}
	if !alerts[0].Timestamp.Equal(testNow) {
		t.Errorf("alert Timestamp = %v, want %v", alerts[0].Timestamp, testNow)
	}
	if alerts[0].Email != "u1@example.com" || alerts[0].SourceIP != "203.0.113.10" {
		t.Errorf("alert fields not copied from attempt: %+v", alerts[0])
	}

	// The phone is now known.
	third := input("u1", testNow)
	third.Fingerprint = phone()
	if alerts := analyze(t, e, third); len(alerts) != 0 {
		t.Errorf("known device raised %v", alertTypes(alerts))
	}
}

func TestEngine_BaselineIsIdempotent(t *testing.T) {
	e := newTestEngine(t)

	for i := 0; i < 5; i++ {
		in := input("u1", testNow.Add(time.Duration(i)*3*time.Hour))
		in.Fingerprint = laptop()
		if alerts := analyze(t, e, in); len(alerts) != 0 {
			t.Fatalf("attempt %d raised %v", i, alertTypes(alerts))
		}
	}
}

func TestEngine_MissingFingerprintSharesOneKey(t *testing.T) {
	e := newTestEngine(t)

	analyze(t, e, input("u1", testNow.Add(-time.Hour)))

	in := input("u1", testNow)
	in.Fingerprint = &EnvironmentFingerprint{ScreenWidth: -1}
	if alerts := analyze(t, e, in); len(alerts) != 0 {
		t.Errorf("malformed fingerprint raised %v", alertTypes(alerts))
	}

	history := e.UserHistory("u1")
	for _, a := range history {
		if a.DeviceKey != UnknownDeviceKey {
			t.Errorf("DeviceKey = %q, want %q", a.DeviceKey, UnknownDeviceKey)
		}
	}
}

func TestEngine_ImpossibleTravel(t *testing.T) {
	tests := []struct {
		name      string
		gap       time.Duration
		wantTypes []AlertType
	}{
		{name: "one hour", gap: time.Hour, wantTypes: []AlertType{AlertTypeNewLocation, AlertTypeImpossibleTravel}},
		{name: "six hours", gap: 6 * time.Hour, wantTypes: []AlertType{AlertTypeNewLocation}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			start := testNow.Add(-tt.gap)

			first := input("u1", start)
			loc := *abidjan
			first.GeoLocation = &loc
			analyze(t, e, first)

			second := input("u1", testNow)
			loc2 := *paris
			second.GeoLocation = &loc2
			alerts := analyze(t, e, second)

			got := alertTypes(alerts)
			if fmt.Sprint(got) != fmt.Sprint(tt.wantTypes) {
				t.Fatalf("alerts = %v, want %v", got, tt.wantTypes)
			}
		})
	}
}

func TestEngine_AutomatedAttackVolume(t *testing.T) {
	e := newTestEngine(t)
	base := testNow.Add(-time.Hour)

	for i := 0; i < 20; i++ {
		in := input("u1", base.Add(time.Duration(i)*time.Minute))
		in.Success = false
		if alerts := analyze(t, e, in); len(alerts) != 0 {
			t.Fatalf("attempt %d raised %v", i+1, alertTypes(alerts))
		}
	}

	in := input("u1", base.Add(20*time.Minute))
	in.Success = false
	alerts := analyze(t, e, in)
	if len(alerts) != 1 || alerts[0].Type != AlertTypeAutomatedAttack || alerts[0].Severity != SeverityHigh {
		t.Fatalf("21st attempt raised %+v, want one high automated_attack", alerts)
	}
	var details AttackVolumeDetails
	if err := json.Unmarshal(alerts[0].Details, &details); err != nil {
		t.Fatal(err)
	}
	if details.AttemptsInHour != 21 {
		t.Errorf("AttemptsInHour = %d, want 21", details.AttemptsInHour)
	}
}

func TestEngine_SuspiciousTiming(t *testing.T) {
	e := newTestEngine(t)
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 9; i++ {
		analyze(t, e, input("u1", day.AddDate(0, 0, i).Add(14*time.Hour)))
	}
	analyze(t, e, input("u1", day.AddDate(0, 0, 9).Add(3*time.Hour)))

	alerts := analyze(t, e, input("u1", day.AddDate(0, 0, 10).Add(3*time.Hour+30*time.Minute)))
	if len(alerts) != 1 || alerts[0].Type != AlertTypeSuspiciousTiming || alerts[0].Severity != SeverityLow {
		t.Fatalf("alerts = %+v, want one low suspicious_timing", alerts)
	}
}

func TestEngine_HistoryCap(t *testing.T) {
	e := newTestEngine(t)
	base := testNow.Add(-300 * time.Hour)

	for i := 0; i < 101; i++ {
		analyze(t, e, input("u1", base.Add(time.Duration(i)*2*time.Hour)))
	}

	history := e.UserHistory("u1")
	if len(history) != DefaultMaxAttemptsPerUser {
		t.Fatalf("history length = %d, want %d", len(history), DefaultMaxAttemptsPerUser)
	}
	if want := base.Add(2 * time.Hour); !history[0].Timestamp.Equal(want) {
		t.Errorf("oldest retained = %v, want %v", history[0].Timestamp, want)
	}
	if want := base.Add(200 * time.Hour); !history[len(history)-1].Timestamp.Equal(want) {
		t.Errorf("newest retained = %v, want %v", history[len(history)-1].Timestamp, want)
	}
}

func TestEngine_InvalidAttempt(t *testing.T) {
	e := newTestEngine(t)

	tests := []struct {
		name string
		in   LoginAttemptInput
	}{
		{name: "empty user id", in: LoginAttemptInput{Timestamp: testNow}},
		{name: "bad source ip", in: LoginAttemptInput{UserID: "u1", SourceIP: "not-an-ip", Timestamp: testNow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AnalyzeLoginAttempt(context.Background(), tt.in)
			if !errors.Is(err, ErrInvalidAttempt) {
				t.Fatalf("error = %v, want ErrInvalidAttempt", err)
			}
		})
	}

	t.Run("validation details are reachable", func(t *testing.T) {
		_, err := e.AnalyzeLoginAttempt(context.Background(), LoginAttemptInput{UserID: "u1", SourceIP: "nope"})
		var verr *validation.RequestValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("error %v does not wrap a validation error", err)
		}
		if len(verr.Errors()) == 0 {
			t.Error("no field errors")
		}
	})

	if got := len(e.UserHistory("u1")); got != 0 {
		t.Errorf("invalid attempts were recorded: %d", got)
	}
}

func TestEngine_ZeroTimestampUsesClock(t *testing.T) {
	e := newTestEngine(t)
	analyze(t, e, LoginAttemptInput{UserID: "u1"})

	history := e.UserHistory("u1")
	if len(history) != 1 || !history[0].Timestamp.Equal(testNow) {
		t.Fatalf("history = %+v, want one attempt at %v", history, testNow)
	}
}

type failingDetector struct {
	detectorState
	panics bool
}

func (d *failingDetector) Type() AlertType { return "failing" }

func (d *failingDetector) Check(context.Context, *Snapshot, *LoginAttempt) ([]*AnomalyAlert, error) {
	if d.panics {
		panic("boom")
	}
	return nil, errors.New("backend unavailable")
}

func (d *failingDetector) Configure(json.RawMessage) error { return nil }

func (d *failingDetector) ConfigJSON() (json.RawMessage, error) { return json.RawMessage(`{}`), nil }

func TestEngine_FailedAnalysisCommitsNothing(t *testing.T) {
	for _, panics := range []bool{false, true} {
		t.Run(fmt.Sprintf("panics=%v", panics), func(t *testing.T) {
			e := newTestEngine(t)

			first := input("u1", testNow.Add(-time.Hour))
			first.Fingerprint = laptop()
			analyze(t, e, first)

			d := &failingDetector{panics: panics}
			d.enabled = true
			e.RegisterDetector(d)

			second := input("u1", testNow)
			second.Fingerprint = phone()
			_, err := e.AnalyzeLoginAttempt(context.Background(), second)
			if !errors.Is(err, ErrAnalysisFailed) {
				t.Fatalf("error = %v, want ErrAnalysisFailed", err)
			}
			if got := len(e.UserHistory("u1")); got != 1 {
				t.Errorf("history length = %d, want 1", got)
			}
			if got := len(e.RecentAlerts("u1", 0)); got != 0 {
				t.Errorf("alerts recorded = %d, want 0", got)
			}

			// Once the detector is disabled the retry sees the same history
			// and raises the new device alert exactly once.
			if err := e.SetDetectorEnabled("failing", false); err != nil {
				t.Fatal(err)
			}
			alerts := analyze(t, e, second)
			if len(alerts) != 1 || alerts[0].Type != AlertTypeNewDevice {
				t.Errorf("retry alerts = %v, want [new_device]", alertTypes(alerts))
			}
		})
	}
}

func TestEngine_DisabledDetector(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SetDetectorEnabled(AlertTypeNewDevice, false); err != nil {
		t.Fatalf("SetDetectorEnabled() error = %v", err)
	}

	first := input("u1", testNow.Add(-time.Hour))
	first.Fingerprint = laptop()
	analyze(t, e, first)

	second := input("u1", testNow)
	second.Fingerprint = phone()
	if alerts := analyze(t, e, second); len(alerts) != 0 {
		t.Errorf("disabled detector raised %v", alertTypes(alerts))
	}

	if err := e.SetDetectorEnabled("nope", true); !errors.Is(err, ErrDetectorNotFound) {
		t.Errorf("error = %v, want ErrDetectorNotFound", err)
	}
}

func TestEngine_DisabledEngine(t *testing.T) {
	e := newTestEngine(t)
	e.SetEnabled(false)

	alerts, err := e.AnalyzeLoginAttempt(context.Background(), input("u1", testNow))
	if err != nil || alerts != nil {
		t.Fatalf("AnalyzeLoginAttempt() = %v, %v; want nil, nil", alerts, err)
	}
	if got := len(e.UserHistory("u1")); got != 0 {
		t.Errorf("disabled engine recorded %d attempts", got)
	}
}

func TestEngine_DisabledDetectorsConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DisabledDetectors = []AlertType{AlertTypeSuspiciousTiming}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	for _, info := range e.ListDetectors() {
		want := info.Type != AlertTypeSuspiciousTiming
		if info.Enabled != want {
			t.Errorf("%s enabled = %v, want %v", info.Type, info.Enabled, want)
		}
	}

	cfg.DisabledDetectors = []AlertType{"unknown"}
	if _, err := NewEngine(cfg); !errors.Is(err, ErrDetectorNotFound) {
		t.Errorf("error = %v, want ErrDetectorNotFound", err)
	}
}

func TestEngine_ListDetectors(t *testing.T) {
	e := newTestEngine(t)

	infos := e.ListDetectors()
	want := []AlertType{
		AlertTypeNewDevice,
		AlertTypeNewLocation,
		AlertTypeImpossibleTravel,
		AlertTypeAutomatedAttack,
		AlertTypeSuspiciousTiming,
	}
	if len(infos) != len(want) {
		t.Fatalf("got %d detectors, want %d", len(infos), len(want))
	}
	for i, info := range infos {
		if info.Type != want[i] {
			t.Errorf("detector %d = %s, want %s", i, info.Type, want[i])
		}
		if !info.Enabled {
			t.Errorf("%s disabled by default", info.Type)
		}
		if !json.Valid(info.Config) {
			t.Errorf("%s config is not valid JSON: %s", info.Type, info.Config)
		}
	}
}

func TestEngine_ConfigureDetector(t *testing.T) {
	e := newTestEngine(t)

	if err := e.ConfigureDetector(AlertTypeAutomatedAttack, json.RawMessage(`{"max_attempts": 2}`)); err != nil {
		t.Fatalf("ConfigureDetector() error = %v", err)
	}
	if err := e.ConfigureDetector(AlertTypeAutomatedAttack, json.RawMessage(`{"max_attempts": 0}`)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("error = %v, want ErrInvalidConfig", err)
	}
	if err := e.ConfigureDetector("nope", json.RawMessage(`{}`)); !errors.Is(err, ErrDetectorNotFound) {
		t.Errorf("error = %v, want ErrDetectorNotFound", err)
	}

	for i := 0; i < 2; i++ {
		analyze(t, e, input("u1", testNow.Add(time.Duration(i)*time.Minute)))
	}
	alerts := analyze(t, e, input("u1", testNow.Add(2*time.Minute)))
	if len(alerts) != 1 || alerts[0].Type != AlertTypeAutomatedAttack {
		t.Errorf("alerts = %v, want [automated_attack]", alertTypes(alerts))
	}
}

type fakeResolver struct {
	loc *GeoLocation
	err error
}

func (r *fakeResolver) Resolve(context.Context, string) (*GeoLocation, error) {
	return r.loc, r.err
}

func TestEngine_GeoEnrichment(t *testing.T) {
	e := newTestEngine(t)
	loc := *paris
	e.SetGeoResolver(&fakeResolver{loc: &loc})

	analyze(t, e, input("u1", testNow))
	history := e.UserHistory("u1")
	if len(history) != 1 || history[0].GeoLocation == nil || history[0].GeoLocation.City != "Paris" {
		t.Fatalf("attempt not enriched: %+v", history)
	}
	if history[0].LocationKey != LocationKey(paris, 1) {
		t.Errorf("LocationKey = %q", history[0].LocationKey)
	}

	e.SetGeoResolver(&fakeResolver{err: errors.New("lookup failed")})
	analyze(t, e, input("u2", testNow))
	if h := e.UserHistory("u2"); len(h) != 1 || h[0].GeoLocation != nil {
		t.Errorf("failed lookup should leave the attempt unlocated: %+v", h)
	}
}

func TestEngine_StoredAttemptIsIsolated(t *testing.T) {
	e := newTestEngine(t)
	in := input("u1", testNow)
	loc := *paris
	in.GeoLocation = &loc
	in.Fingerprint = laptop()
	in.Fingerprint.Extra = map[string]string{"fonts": "a,b"}
	analyze(t, e, in)

	in.GeoLocation.City = "Mutated"
	in.Fingerprint.Extra["fonts"] = "mutated"

	h := e.UserHistory("u1")
	if h[0].GeoLocation.City != "Paris" || h[0].Fingerprint.Extra["fonts"] != "a,b" {
		t.Errorf("stored attempt shares memory with the caller: %+v", h[0])
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []AnomalyAlert
	err    error
}

func (n *recordingNotifier) Send(_ context.Context, alert *AnomalyAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, *alert)
	return n.err
}

func (n *recordingNotifier) Name() string  { return "recording" }
func (n *recordingNotifier) Enabled() bool { return true }

func TestEngine_Notify(t *testing.T) {
	e := newTestEngine(t)
	ok := &recordingNotifier{}
	failing := &recordingNotifier{err: errors.New("sink down")}
	e.RegisterNotifier(ok)
	e.RegisterNotifier(failing)

	first := input("u1", testNow.Add(-time.Hour))
	first.Fingerprint = laptop()
	analyze(t, e, first)

	second := input("u1", testNow)
	second.Fingerprint = phone()
	alerts := analyze(t, e, second)

	if err := e.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for _, n := range []*recordingNotifier{ok, failing} {
		n.mu.Lock()
		if len(n.alerts) != 1 || n.alerts[0].ID != alerts[0].ID {
			t.Errorf("notifier received %+v, want alert %s", n.alerts, alerts[0].ID)
		}
		n.mu.Unlock()
	}
}

func TestEngine_NoDeliveryAfterClose(t *testing.T) {
	e := newTestEngine(t)
	n := &recordingNotifier{}
	e.RegisterNotifier(n)

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	first := input("u1", testNow.Add(-time.Hour))
	first.Fingerprint = laptop()
	analyze(t, e, first)
	second := input("u1", testNow)
	second.Fingerprint = phone()
	if alerts := analyze(t, e, second); len(alerts) != 1 {
		t.Fatalf("alerts = %d, want 1 after Close", len(alerts))
	}

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.alerts) != 0 {
		t.Errorf("notifier received %d alerts after Close", len(n.alerts))
	}
	if got := len(e.RecentAlerts("u1", 0)); got != 1 {
		t.Errorf("recorded alerts = %d, want 1", got)
	}
}

func TestEngine_CloseDuringAnalysis(t *testing.T) {
	e := newTestEngine(t)
	n := &recordingNotifier{}
	e.RegisterNotifier(n)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i)
			first := input(user, testNow.Add(-time.Hour))
			first.Fingerprint = laptop()
			second := input(user, testNow)
			second.Fingerprint = phone()
			for _, in := range []LoginAttemptInput{first, second} {
				if _, err := e.AnalyzeLoginAttempt(context.Background(), in); err != nil {
					t.Errorf("AnalyzeLoginAttempt(%s) error = %v", user, err)
				}
			}
		}(i)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	wg.Wait()
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.alerts) > 8 {
		t.Errorf("notifier received %d alerts, want at most 8", len(n.alerts))
	}
}

func TestEngine_Queries(t *testing.T) {
	e := newTestEngine(t)

	// Two users, each with a new device alert and one with impossible travel.
	for _, user := range []string{"u1", "u2"} {
		first := input(user, testNow.Add(-2*time.Hour))
		first.Fingerprint = laptop()
		loc := *abidjan
		first.GeoLocation = &loc
		analyze(t, e, first)
	}

	second := input("u1", testNow.Add(-time.Hour))
	second.Fingerprint = phone()
	loc := *paris
	second.GeoLocation = &loc
	analyze(t, e, second)

	third := input("u2", testNow)
	third.Fingerprint = phone()
	analyze(t, e, third)

	u1 := e.RecentAlerts("u1", 0)
	if got := alertTypes(u1); fmt.Sprint(got) != fmt.Sprint([]AlertType{AlertTypeImpossibleTravel, AlertTypeNewLocation, AlertTypeNewDevice}) {
		t.Errorf("RecentAlerts(u1) = %v", got)
	}
	if got := e.RecentAlerts("u1", 1); len(got) != 1 || got[0].Type != AlertTypeImpossibleTravel {
		t.Errorf("RecentAlerts(u1, 1) = %v", alertTypes(got))
	}
	if got := e.RecentAlerts("nobody", 10); len(got) != 0 {
		t.Errorf("RecentAlerts(nobody) = %v", got)
	}

	high := e.HighSeverityAlerts(0)
	if len(high) != 1 || high[0].Type != AlertTypeImpossibleTravel {
		t.Errorf("HighSeverityAlerts() = %v", alertTypes(high))
	}

	stats := e.AnomalyStats()
	if stats.TotalAlerts != 4 {
		t.Errorf("TotalAlerts = %d, want 4", stats.TotalAlerts)
	}
	if stats.ByType[AlertTypeNewDevice] != 2 || stats.BySeverity[SeverityMedium] != 3 || stats.BySeverity[SeverityHigh] != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.TopUsers) != 2 || stats.TopUsers[0].UserID != "u1" || stats.TopUsers[0].AlertCount != 3 {
		t.Errorf("TopUsers = %+v", stats.TopUsers)
	}
}

func TestEngine_Cleanup(t *testing.T) {
	e := newTestEngine(t)

	// u1 has only stale data; u2 has one stale and one fresh attempt.
	analyze(t, e, input("u1", testNow.AddDate(0, 0, -40)))
	analyze(t, e, input("u2", testNow.AddDate(0, 0, -40)))
	analyze(t, e, input("u2", testNow.AddDate(0, 0, -1)))

	e.alerts.Record(AnomalyAlert{ID: "old", UserID: "u1", Type: AlertTypeNewDevice, Severity: SeverityMedium, Timestamp: testNow.AddDate(0, 0, -40)})
	e.alerts.Record(AnomalyAlert{ID: "new", UserID: "u2", Type: AlertTypeNewDevice, Severity: SeverityMedium, Timestamp: testNow})

	result := e.Cleanup(30)
	want := CleanupResult{AttemptsRemoved: 2, AlertsRemoved: 1, UsersDropped: 1}
	if result != want {
		t.Errorf("Cleanup() = %+v, want %+v", result, want)
	}
	if got := len(e.UserHistory("u1")); got != 0 {
		t.Errorf("u1 history = %d, want 0", got)
	}
	if got := len(e.UserHistory("u2")); got != 1 {
		t.Errorf("u2 history = %d, want 1", got)
	}
	if got := e.AnomalyStats().TotalAlerts; got != 1 {
		t.Errorf("TotalAlerts = %d, want 1", got)
	}

	// A dropped user starts again from a clean baseline.
	in := input("u1", testNow)
	in.Fingerprint = phone()
	if alerts := analyze(t, e, in); len(alerts) != 0 {
		t.Errorf("first attempt after purge raised %v", alertTypes(alerts))
	}

	if again := e.Cleanup(30); again != (CleanupResult{}) {
		t.Errorf("second Cleanup() = %+v, want zero", again)
	}
}

func TestEngine_RunWithContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CleanupInterval = 10 * time.Millisecond
	e, err := NewEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e.SetClock(func() time.Time { return testNow })
	analyze(t, e, input("u1", testNow.AddDate(0, 0, -40)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.RunWithContext(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(e.UserHistory("u1")) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("RunWithContext() = %v, want context.Canceled", err)
	}
	if got := len(e.UserHistory("u1")); got != 0 {
		t.Errorf("retention loop did not purge: %d attempts", got)
	}
}

func TestEngine_ConcurrentSameUser(t *testing.T) {
	e := newTestEngine(t)
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := input("u1", testNow.Add(-time.Duration(i)*time.Hour))
			in.UserAgent = fmt.Sprintf("agent-%d", i)
			if _, err := e.AnalyzeLoginAttempt(context.Background(), in); err != nil {
				t.Errorf("AnalyzeLoginAttempt() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(e.UserHistory("u1")); got != n {
		t.Errorf("history length = %d, want %d", got, n)
	}
}
