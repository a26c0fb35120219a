// AuthSentry - Authentication Anomaly Detection
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/authsentry

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/authsentry/internal/detection"
)

var testNow = time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func newTestServer(t *testing.T) (*detection.Engine, *Handler, http.Handler) {
	t.Helper()
	engine, err := detection.NewEngine(detection.DefaultConfig())
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	engine.SetClock(func() time.Time { return testNow })

	handler := NewHandler(engine)
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	return engine, handler, NewRouter(handler, cfg).SetupChi()
}

func do(t *testing.T, h http.Handler, method, target string, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
		}
	}
	return rec, env
}

func attemptJSON(t *testing.T, userID string, ts time.Time, platform string) string {
	t.Helper()
	in := detection.LoginAttemptInput{
		UserID:    userID,
		Email:     userID + "@example.com",
		Timestamp: ts,
		SourceIP:  "203.0.113.10",
		UserAgent: "Mozilla/5.0",
		Success:   true,
		Fingerprint: &detection.EnvironmentFingerprint{
			Language:     "en-US",
			ScreenWidth:  1920,
			ScreenHeight: 1080,
			Platform:     platform,
		},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestHealthLive(t *testing.T) {
	_, _, h := newTestServer(t)

	rec, env := do(t, h, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("status = %d, success = %v", rec.Code, env.Success)
	}
	if env.Meta == nil || env.Meta.RequestID == "" {
		t.Error("meta.request_id missing")
	}
	if rec.Header().Get("X-Request-ID") != env.Meta.RequestID {
		t.Errorf("header request id %q != meta %q", rec.Header().Get("X-Request-ID"), env.Meta.RequestID)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestHealthReady(t *testing.T) {
	_, handler, h := newTestServer(t)

	handler.AddReadinessCheck("engine", func(context.Context) error { return nil })
	if rec, _ := do(t, h, http.MethodGet, "/api/v1/health/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d, want 200", rec.Code)
	}

	handler.AddReadinessCheck("nats", func(context.Context) error { return errors.New("router not running") })
	rec, env := do(t, h, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	if env.Error == nil || env.Error.Code != ErrCodeServiceUnavailable {
		t.Fatalf("error = %+v", env.Error)
	}
	if !strings.Contains(rec.Body.String(), "router not running") {
		t.Errorf("failing check not reported: %s", rec.Body.String())
	}
}

func TestAnalyzeLoginAttempt(t *testing.T) {
	_, _, h := newTestServer(t)

	rec, env := do(t, h, http.MethodPost, "/api/v1/login-attempts/analyze",
		attemptJSON(t, "u1", testNow.Add(-2*time.Hour), "MacIntel"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var first AnalyzeResponse
	if err := json.Unmarshal(env.Data, &first); err != nil {
		t.Fatal(err)
	}
	if !first.Analyzed || len(first.Alerts) != 0 {
		t.Fatalf("first attempt = %+v, want analyzed with no alerts", first)
	}
	if !strings.Contains(string(env.Data), `"alerts":[]`) {
		t.Errorf("empty alerts should encode as []: %s", env.Data)
	}

	_, env = do(t, h, http.MethodPost, "/api/v1/login-attempts/analyze",
		attemptJSON(t, "u1", testNow.Add(-time.Hour), "iPhone"))
	var second AnalyzeResponse
	if err := json.Unmarshal(env.Data, &second); err != nil {
		t.Fatal(err)
	}
	if len(second.Alerts) != 1 || second.Alerts[0].Type != detection.AlertTypeNewDevice {
		t.Fatalf("alerts = %+v, want one new_device", second.Alerts)
	}

	rec, env = do(t, h, http.MethodGet, "/api/v1/users/u1/alerts", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("alerts status = %d", rec.Code)
	}
	var alerts AlertsResponse
	if err := json.Unmarshal(env.Data, &alerts); err != nil {
		t.Fatal(err)
	}
	if alerts.Count != 1 || alerts.Alerts[0].ID != second.Alerts[0].ID {
		t.Errorf("user alerts = %+v", alerts)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/users/u1/attempts", "")
	var attempts AttemptsResponse
	if err := json.Unmarshal(env.Data, &attempts); err != nil {
		t.Fatal(err)
	}
	if attempts.Count != 2 || attempts.UserID != "u1" {
		t.Errorf("attempts = %+v", attempts)
	}

	_, env = do(t, h, http.MethodGet, "/api/v1/stats", "")
	var stats detection.Stats
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.TotalAlerts != 1 || stats.ByType[detection.AlertTypeNewDevice] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestAnalyzeLoginAttempt_Invalid(t *testing.T) {
	_, _, h := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"userId":`, ErrCodeBadRequest},
		{"empty body", ``, ErrCodeBadRequest},
		{"missing user", `{"email":"a@example.com","success":true}`, ErrCodeValidationFailed},
		{"bad ip", `{"userId":"u1","sourceIp":"not-an-ip","success":true}`, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, env := do(t, h, http.MethodPost, "/api/v1/login-attempts/analyze", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if env.Error == nil || env.Error.Code != tt.code {
				t.Fatalf("error = %+v, want %s", env.Error, tt.code)
			}
		})
	}
}

func TestAnalyzeLoginAttempt_DisabledEngine(t *testing.T) {
	engine, _, h := newTestServer(t)
	engine.SetEnabled(false)

	rec, env := do(t, h, http.MethodPost, "/api/v1/login-attempts/analyze",
		attemptJSON(t, "u1", testNow, "MacIntel"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp AnalyzeResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Analyzed {
		t.Error("analyzed = true on a disabled engine")
	}
	if n := len(engine.UserHistory("u1")); n != 0 {
		t.Errorf("disabled engine recorded %d attempts", n)
	}
}

func TestListLimits(t *testing.T) {
	_, _, h := newTestServer(t)

	for _, target := range []string{
		"/api/v1/users/u1/alerts?limit=0",
		"/api/v1/users/u1/alerts?limit=abc",
		"/api/v1/alerts/high-severity?limit=1001",
	} {
		if rec, _ := do(t, h, http.MethodGet, target, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, rec.Code)
		}
	}

	rec, env := do(t, h, http.MethodGet, "/api/v1/alerts/high-severity", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(string(env.Data), `"alerts":[]`) {
		t.Errorf("data = %s", env.Data)
	}
}

func TestUserIDIsUnescaped(t *testing.T) {
	_, _, h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/v1/login-attempts/analyze",
		attemptJSON(t, "alice@corp", testNow, "MacIntel"))

	_, env := do(t, h, http.MethodGet, "/api/v1/users/alice%40corp/attempts", "")
	var attempts AttemptsResponse
	if err := json.Unmarshal(env.Data, &attempts); err != nil {
		t.Fatal(err)
	}
	if attempts.UserID != "alice@corp" || attempts.Count != 1 {
		t.Errorf("attempts = %+v", attempts)
	}
}

func TestDetectors(t *testing.T) {
	_, _, h := newTestServer(t)

	_, env := do(t, h, http.MethodGet, "/api/v1/detectors", "")
	var list DetectorsResponse
	if err := json.Unmarshal(env.Data, &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Detectors) != 5 {
		t.Fatalf("detectors = %d, want 5", len(list.Detectors))
	}

	rec, env := do(t, h, http.MethodPut, "/api/v1/detectors/new_device/enabled", `{"enabled":false}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var info detection.DetectorInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatal(err)
	}
	if info.Type != detection.AlertTypeNewDevice || info.Enabled {
		t.Errorf("info = %+v, want new_device disabled", info)
	}

	rec, env = do(t, h, http.MethodPut, "/api/v1/detectors/new_device/enabled", `{}`)
	if rec.Code != http.StatusBadRequest || env.Error.Code != ErrCodeValidationFailed {
		t.Errorf("missing enabled: status = %d, error = %+v", rec.Code, env.Error)
	}

	rec, env = do(t, h, http.MethodPut, "/api/v1/detectors/bogus/enabled", `{"enabled":true}`)
	if rec.Code != http.StatusNotFound || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown detector: status = %d, error = %+v", rec.Code, env.Error)
	}
}

func TestConfigureDetector(t *testing.T) {
	_, _, h := newTestServer(t)

	rec, env := do(t, h, http.MethodPut, "/api/v1/detectors/automated_attack/config", `{"max_attempts":50}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var info detection.DetectorInfo
	if err := json.Unmarshal(env.Data, &info); err != nil {
		t.Fatal(err)
	}
	var cfg detection.AutomatedAttackConfig
	if err := json.Unmarshal(info.Config, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.MaxAttempts != 50 || cfg.WindowMinutes != 60 {
		t.Errorf("config = %+v, want max_attempts 50 with window kept", cfg)
	}

	for _, body := range []string{`{"bogus":1}`, `{"max_attempts":0}`, `not json`} {
		rec, _ := do(t, h, http.MethodPut, "/api/v1/detectors/automated_attack/config", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}

	if rec, _ := do(t, h, http.MethodPut, "/api/v1/detectors/bogus/config", `{}`); rec.Code != http.StatusNotFound {
		t.Errorf("unknown detector status = %d, want 404", rec.Code)
	}
}

func TestCleanup(t *testing.T) {
	engine, _, h := newTestServer(t)

	do(t, h, http.MethodPost, "/api/v1/login-attempts/analyze",
		attemptJSON(t, "u1", testNow.Add(-48*time.Hour), "MacIntel"))

	for _, q := range []string{"-1", "x"} {
		if rec, _ := do(t, h, http.MethodPost, "/api/v1/maintenance/cleanup?older_than_days="+q, ""); rec.Code != http.StatusBadRequest {
			t.Errorf("older_than_days=%s status = %d, want 400", q, rec.Code)
		}
	}

	rec, env := do(t, h, http.MethodPost, "/api/v1/maintenance/cleanup?older_than_days=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var result detection.CleanupResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.AttemptsRemoved != 1 || result.UsersDropped != 1 {
		t.Errorf("result = %+v", result)
	}
	if n := len(engine.UserHistory("u1")); n != 0 {
		t.Errorf("history after cleanup = %d", n)
	}
}

func TestRoutingFallbacks(t *testing.T) {
	_, _, h := newTestServer(t)

	rec, env := do(t, h, http.MethodGet, "/api/v1/nope", "")
	if rec.Code != http.StatusNotFound || env.Error == nil || env.Error.Code != ErrCodeNotFound {
		t.Errorf("unknown route: status = %d, error = %+v", rec.Code, env.Error)
	}

	rec, _ = do(t, h, http.MethodDelete, "/api/v1/stats", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE /stats status = %d, want 405", rec.Code)
	}

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("/metrics status = %d", rec.Code)
	}
}
